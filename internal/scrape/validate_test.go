package scrape

import "testing"

func TestValidateURL_Schemes(t *testing.T) {
	valid := []string{
		"http://example.com/page",
		"https://example.com",
	}
	for _, u := range valid {
		got, err := ValidateURL(u, nil)
		if err != nil {
			t.Errorf("ValidateURL(%q) failed: %v", u, err)
		}
		if got != u {
			t.Errorf("ValidateURL(%q) rewrote the URL to %q", u, got)
		}
	}

	invalid := []string{
		"",
		"ftp://example.com/file",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"gopher://example.com",
		"example.com/no-scheme",
	}
	for _, u := range invalid {
		if _, err := ValidateURL(u, nil); err == nil {
			t.Errorf("ValidateURL(%q) should have been rejected", u)
		}
	}
}

func TestValidateURL_PrivateHosts(t *testing.T) {
	blocked := []string{
		"http://localhost/admin",
		"http://LOCALHOST/admin",
		"http://127.0.0.1:8080/",
		"http://0.0.0.0/",
		"http://10.0.0.5/internal",
		"http://172.16.1.1/",
		"http://192.168.1.1/router",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
	}
	for _, u := range blocked {
		if _, err := ValidateURL(u, nil); err == nil {
			t.Errorf("ValidateURL(%q) should have blocked a private host", u)
		}
	}

	public := []string{
		"http://8.8.8.8/",
		"https://example.com/",
	}
	for _, u := range public {
		if _, err := ValidateURL(u, nil); err != nil {
			t.Errorf("ValidateURL(%q) failed: %v", u, err)
		}
	}
}

func TestValidateURL_AllowedDomains(t *testing.T) {
	domains := []string{"example.com", "docs.python.org"}

	allowed := []string{
		"https://example.com/page",
		"https://www.example.com/page", // subdomain
		"https://docs.python.org/3/",
	}
	for _, u := range allowed {
		if _, err := ValidateURL(u, domains); err != nil {
			t.Errorf("ValidateURL(%q) failed: %v", u, err)
		}
	}

	denied := []string{
		"https://evil.com/page",
		"https://notexample.com/", // suffix but not a subdomain
		"https://example.com.evil.com/",
	}
	for _, u := range denied {
		if _, err := ValidateURL(u, domains); err == nil {
			t.Errorf("ValidateURL(%q) should have been rejected by the domain list", u)
		}
	}
}
