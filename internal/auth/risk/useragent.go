package risk

import "strings"

// Device is the coarse client description stored with login attempts and
// device records.
type Device struct {
	Browser string
	OS      string
}

// Order matters: Edge and Opera also advertise Chrome, and Chrome advertises
// Safari.
var browsers = []struct{ token, name string }{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"crios/", "Chrome"},
	{"safari/", "Safari"},
	{"curl/", "curl"},
}

var systems = []struct{ token, name string }{
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"windows", "Windows"},
	{"mac os x", "macOS"},
	{"cros", "ChromeOS"},
	{"linux", "Linux"},
}

// ParseDevice extracts browser and operating system names from a User-Agent.
// Unrecognised values come back as "Other".
func ParseDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	d := Device{Browser: "Other", OS: "Other"}
	for _, b := range browsers {
		if strings.Contains(ua, b.token) {
			d.Browser = b.name
			break
		}
	}
	for _, s := range systems {
		if strings.Contains(ua, s.token) {
			d.OS = s.name
			break
		}
	}
	return d
}
