package crm

import (
	"strings"
	"text/template"
)

// emailParams is passed as data when executing the magic-link email template.
type emailParams struct {
	FirstName    string
	MagicLinkURL string
}

var magicLinkEmailTmpl = template.Must(template.New("magic-link-email").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 500px; margin: 0 auto;">
  <h2 style="color: #14B8A6;">Hi {{.FirstName}}!</h2>
  <p>Click the button below to log in to your affiliate portal:</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="{{.MagicLinkURL}}" style="background: #14B8A6; color: white; padding: 14px 28px; text-decoration: none; border-radius: 6px; font-weight: bold; display: inline-block;">
      Log In to Portal
    </a>
  </p>
  <p style="color: #666; font-size: 14px;">This link expires in 15 minutes.</p>
  <p style="color: #666; font-size: 14px;">If you did not request this, you can safely ignore this email.</p>
  <p style="margin-top: 30px; color: #999; font-size: 12px;">&mdash; Apex Automation</p>
</div>
`))

func renderMagicLinkEmail(firstName, linkURL string) (string, error) {
	if firstName == "" {
		firstName = "there"
	}

	var b strings.Builder
	err := magicLinkEmailTmpl.Execute(&b, emailParams{
		FirstName:    firstName,
		MagicLinkURL: linkURL,
	})
	if err != nil {
		return "", err
	}

	return b.String(), nil
}
