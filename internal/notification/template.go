package notification

import "fmt"

// Template names carried on notification requests.
const (
	TemplateWelcome          = "welcome"
	TemplateResetPasswordOtp = "reset_password_otp"
)

// Render produces the final subject and body for a request. Unknown or empty
// template names pass the request content through untouched.
func Render(req Request) (subject, body string) {
	switch req.Template {
	case TemplateWelcome:
		name := req.Data["full_name"]
		if name == "" {
			name = "there"
		}
		return "Welcome to Healink", fmt.Sprintf("Hi %s, your account is ready.", name)
	case TemplateResetPasswordOtp:
		return "Your password reset code",
			fmt.Sprintf("Your one-time code is %s. It expires at %s.", req.Data["otp"], req.Data["expires_at"])
	default:
		return req.Subject, req.Body
	}
}
