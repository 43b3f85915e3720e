package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/plastudo/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// maxPasswordBytes はbcryptが扱える最大バイト数。
const maxPasswordBytes = 72

// CreateOrSignIn はCredentials.SignUpに応じてアカウント作成またはサインインを行う。
func (s *Service) CreateOrSignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	if creds.SignUp {
		return s.SignUp(ctx, creds)
	}
	return s.SignIn(ctx, creds)
}

// SignUp はメールアドレスとパスワードでアカウントを作成し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	email := normalizeEmail(creds.Email)
	if err := validateSignUp(email, creds.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.createUser(ctx, email, strings.TrimSpace(creds.Name), &model.Identity{
		Provider:       model.ProviderPassword,
		ProviderUserID: email,
		PasswordHash:   hash,
	})
	if err != nil {
		return nil, err
	}

	return s.createSession(ctx, user.ID, model.ProviderPassword)
}

// SignIn はメールアドレスとパスワードを照合し、セッションを発行する。
// メールアドレスの未登録とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, model.ProviderPassword, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil || len(identity.PasswordHash) == 0 {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(creds.Password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.createSession(ctx, identity.UserID, model.ProviderPassword)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignUp(email, password string) error {
	if email == "" {
		return model.NewInvalidSignupError("email em falta")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewInvalidSignupError("email inválido")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewInvalidSignupError(fmt.Sprintf("a palavra-passe deve ter pelo menos %d caracteres", MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidSignupError("palavra-passe demasiado longa")
	}
	return nil
}
