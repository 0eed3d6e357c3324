package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"
)

// Message is a rendered notification
type Message struct {
	Subject string
	Text    string
	HTML    string
}

var htmlLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>{{.Subject}}</h2>
    {{range .Paragraphs}}<p>{{.}}</p>
    {{end}}{{if .Link}}<p><a href="{{.Link}}" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">{{.LinkLabel}}</a></p>
    <p>Or copy and paste this link in your browser:<br><code>{{.Link}}</code></p>
    {{end}}<p style="color: #666; font-size: 12px;">This is an automated message from Tally. Please do not reply.</p>
  </div>
</body>
</html>
`))

type content struct {
	Subject    string
	Paragraphs []string
	Link       string
	LinkLabel  string
}

// Render builds the subject and bodies for n. Links are rooted at baseURL.
func Render(n Notification, baseURL string) (Message, error) {
	c, err := compose(n, strings.TrimRight(baseURL, "/"))
	if err != nil {
		return Message{}, err
	}

	var html bytes.Buffer
	if err := htmlLayout.Execute(&html, c); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", n.Kind, err)
	}

	var text strings.Builder
	text.WriteString(c.Subject + "\n\n")
	for _, p := range c.Paragraphs {
		text.WriteString(p + "\n\n")
	}
	if c.Link != "" {
		text.WriteString(c.LinkLabel + ": " + c.Link + "\n")
	}

	return Message{Subject: c.Subject, Text: text.String(), HTML: html.String()}, nil
}

func greeting(name string) string {
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", name)
}

func compose(n Notification, baseURL string) (content, error) {
	switch n.Kind {
	case KindVerification:
		return content{
			Subject: "Verify your email address",
			Paragraphs: []string{
				greeting(n.Name),
				"Please verify your email address to activate your Tally account.",
				fmt.Sprintf("This link expires at %s.", n.ExpiresAt.UTC().Format(time.RFC1123)),
			},
			Link:      baseURL + "/verify-email/" + n.Token,
			LinkLabel: "Verify Email Address",
		}, nil
	case KindWelcome:
		return content{
			Subject:    "Welcome to Tally",
			Paragraphs: []string{greeting(n.Name), "Your email is verified and your account is active."},
		}, nil
	case KindLogin:
		return content{
			Subject: "New sign-in to your account",
			Paragraphs: []string{
				greeting(n.Name),
				fmt.Sprintf("A new sign-in from %s (%s) was recorded.", n.Details["ip_address"], n.Details["device"]),
				"If this was not you, reset your password and sign out of all sessions.",
			},
		}, nil
	case KindSuspended:
		return content{
			Subject: "Your account has been temporarily locked",
			Paragraphs: []string{
				greeting(n.Name),
				"Too many failed sign-in attempts were made on your account.",
				fmt.Sprintf("Sign-in is locked until %s. After that you will need to verify your email again.",
					n.ExpiresAt.UTC().Format(time.RFC1123)),
			},
		}, nil
	case KindPasswordReset:
		return content{
			Subject: "Reset your password",
			Paragraphs: []string{
				greeting(n.Name),
				"We received a request to reset your password.",
				fmt.Sprintf("This link expires at %s. If you did not ask for it, ignore this email.",
					n.ExpiresAt.UTC().Format(time.RFC1123)),
			},
			Link:      baseURL + "/reset-password/" + n.Token,
			LinkLabel: "Reset Password",
		}, nil
	case KindPasswordChanged:
		return content{
			Subject:    "Your password was changed",
			Paragraphs: []string{greeting(n.Name), "Your password was changed. If you did not make this change, reset your password now."},
		}, nil
	case KindInactivityWarning:
		return content{
			Subject: "Your account will be deactivated soon",
			Paragraphs: []string{
				greeting(n.Name),
				fmt.Sprintf("You have not signed in since %s. Sign in before %s to keep your account active.",
					n.Details["last_login_at"], n.ExpiresAt.UTC().Format(time.RFC1123)),
			},
			Link:      baseURL + "/login",
			LinkLabel: "Sign In",
		}, nil
	case KindAccountDeleted:
		return content{
			Subject:    "Your account has been deleted",
			Paragraphs: []string{greeting(n.Name), "Your account was deleted after a period of inactivity."},
		}, nil
	case KindSecurityAlert:
		keys := make([]string, 0, len(n.Details))
		for k := range n.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		paragraphs := []string{"Suspicious activity was detected."}
		for _, k := range keys {
			paragraphs = append(paragraphs, fmt.Sprintf("%s: %s", k, n.Details[k]))
		}
		return content{Subject: "Security alert", Paragraphs: paragraphs}, nil
	}

	return content{}, fmt.Errorf("unknown notification kind %q", n.Kind)
}
