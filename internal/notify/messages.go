package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// Templates renders the notification messages sent by the login flow.
type Templates struct {
	Product   string // appears in subjects, e.g. "AssetFlow"
	UnlockURL string // base URL the unlock token is appended to
}

// Event carries the login context quoted in security notices.
type Event struct {
	IPAddress string
	UserAgent string
	Timezone  string
	Reason    string
}

func (e Event) device() string {
	if e.UserAgent == "" {
		return "Unknown device"
	}
	return e.UserAgent
}

func (t Templates) subject(s string) string {
	if t.Product == "" {
		return s
	}
	return t.Product + " - " + s
}

func greet(name string) string {
	return "Hello " + name + ",\n\n"
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func (t Templates) MFACode(to, name, code string, expiryMinutes int) Message {
	return Message{
		Kind:    KindMFACode,
		To:      to,
		Subject: t.subject("Your MFA Code"),
		Body: greet(name) + lines(
			"Your MFA code is: "+code,
			fmt.Sprintf("This code will expire in %d minutes.", expiryMinutes),
			"If you did not request this code, please contact support immediately.",
		),
	}
}

func (t Templates) NewDevice(to, name string, e Event) Message {
	return Message{
		Kind:    KindNewDevice,
		To:      to,
		Subject: t.subject("New Device Login Detected"),
		Body: greet(name) + lines(
			"A new device has logged into your account.",
			"IP Address: "+e.IPAddress,
			"Device: "+e.device(),
			"If this wasn't you, please reset your password immediately and contact support.",
		),
	}
}

func (t Templates) TempDisabled(to, name string, hours int) Message {
	return Message{
		Kind:    KindTempDisabled,
		To:      to,
		Subject: t.subject("Account Temporarily Disabled"),
		Body: greet(name) + lines(
			"Your account has been temporarily disabled due to too many failed login attempts.",
			fmt.Sprintf("Your account will be automatically reactivated in %d hours.", hours),
			"If you did not attempt to login, please contact support immediately.",
		),
	}
}

func (t Templates) Suspended(to, name string) Message {
	return Message{
		Kind:    KindSuspended,
		To:      to,
		Subject: t.subject("Account Suspended"),
		Body: greet(name) + lines(
			"Your account has been suspended due to suspicious activity or too many failed login attempts.",
			"Please contact support to reactivate your account.",
		),
	}
}

func (t Templates) SuspiciousLogin(to, name string, e Event) Message {
	return Message{
		Kind:    KindSuspiciousLogin,
		To:      to,
		Subject: t.subject("Suspicious Login Blocked"),
		Body: greet(name) + lines(
			"A suspicious login attempt to your account was blocked.",
			"IP Address: "+e.IPAddress,
			"Reason: "+e.Reason,
			"Your account has been temporarily disabled for security. If this was you, please contact support.",
		),
	}
}

// TimezoneMismatch includes the unlock link built from token.
func (t Templates) TimezoneMismatch(to, name, token string, e Event) Message {
	return Message{
		Kind:    KindTimezoneMismatch,
		To:      to,
		Subject: t.subject("Login from Unexpected Timezone Detected"),
		Body: greet(name) + lines(
			"A login attempt was detected from an unexpected timezone.",
			"Timezone: "+e.Timezone,
			"IP Address: "+e.IPAddress,
			"Device: "+e.device(),
			"If this was you, use the link below to unlock your account:",
			t.unlockLink(token),
			"If this wasn't you, please contact support immediately.",
		),
	}
}

func (t Templates) TimezoneMismatchAdmin(to, adminName, userEmail string, e Event) Message {
	return Message{
		Kind:    KindTimezoneMismatchAdmin,
		To:      to,
		Subject: t.subject("Unexpected Timezone Login Alert"),
		Body: greet(adminName) + lines(
			"A login from an unexpected timezone was blocked for user: "+userEmail,
			"Timezone: "+e.Timezone,
			"IP Address: "+e.IPAddress,
			"Device: "+e.device(),
			"The account stays disabled until the user unlocks it.",
		),
	}
}

func (t Templates) OutOfHours(to, name string, e Event) Message {
	return Message{
		Kind:    KindOutOfHours,
		To:      to,
		Subject: t.subject("Out of Hours Login Detected"),
		Body: greet(name) + lines(
			"A login to your account was detected outside of normal working hours.",
			"IP Address: "+e.IPAddress,
			"Device: "+e.device(),
			"If this wasn't you, please contact support immediately.",
		),
	}
}

func (t Templates) OutOfHoursAdmin(to, adminName, userEmail string, e Event) Message {
	return Message{
		Kind:    KindOutOfHoursAdmin,
		To:      to,
		Subject: t.subject("Out of Hours Login Alert"),
		Body: greet(adminName) + lines(
			"An out of hours login was detected for user: "+userEmail,
			"IP Address: "+e.IPAddress,
			"Device: "+e.device(),
			"Please review this activity if necessary.",
		),
	}
}

func (t Templates) unlockLink(token string) string {
	base := t.UnlockURL
	if base == "" {
		return "Unlock token: " + token
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
