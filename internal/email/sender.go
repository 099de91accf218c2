// Package email define la interfaz de envío y la implementación SMTP.
// El renderizado de templates por tenant queda fuera del core: acá solo
// se envían los códigos OTP en texto plano.
package email

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

// Sender envía un correo simple.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// subjects por propósito de OTP.
var subjects = map[core.ChallengePurpose]string{
	core.PurposeLoginMFA:      "Your login verification code",
	core.PurposeSignupVerify:  "Verify your account",
	core.PurposePasswordReset: "Your password reset code",
	core.PurposeDeleteConfirm: "Confirm account deletion",
}

// SendCode envía un código OTP con el asunto del propósito.
func SendCode(ctx context.Context, s Sender, to string, purpose core.ChallengePurpose, code string) error {
	subject, ok := subjects[purpose]
	if !ok {
		subject = "Your verification code"
	}
	// La vigencia varía por propósito (los códigos de borrado duran más),
	// así que el cuerpo no promete una duración concreta.
	body := fmt.Sprintf("Your verification code is: %s", code)
	return s.Send(ctx, to, subject, body)
}

// Noop descarta todos los envíos. Para tests y desarrollo local.
type Noop struct{}

func (Noop) Send(ctx context.Context, to, subject, body string) error { return nil }
