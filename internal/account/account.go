// Package account creates customer accounts after checkout.
package account

import (
	"context"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/xenking/rig-checkout/internal/domain/order"
)

const defaultTimeout = 5 * time.Second

// ErrAccountExists is returned when the email already has an account.
var ErrAccountExists = errors.New("account already exists")

// Creator creates a customer account.
type Creator interface {
	CreateAccount(ctx context.Context, req order.AccountRequest) error
}

// FirebaseConfig selects the Firebase project accounts are created in.
type FirebaseConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

type userCreator interface {
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
}

// Firebase creates email/password users with the Firebase Admin SDK.
type Firebase struct {
	users   userCreator
	timeout time.Duration
}

// NewFirebase initialises the Admin SDK for cfg.
func NewFirebase(ctx context.Context, cfg FirebaseConfig) (*Firebase, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initialise firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initialise firebase auth client")
	}
	return &Firebase{users: client, timeout: defaultTimeout}, nil
}

// CreateAccount creates a user with the customer's email and password.
func (f *Firebase) CreateAccount(ctx context.Context, req order.AccountRequest) error {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return errors.New("email and password are required")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	user := (&firebaseauth.UserToCreate{}).
		Email(email).
		Password(req.Password)
	if name := strings.TrimSpace(req.Name); name != "" {
		user = user.DisplayName(name)
	}

	rec, err := f.users.CreateUser(ctx, user)
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			return ErrAccountExists
		}
		return errors.Wrap(err, "create firebase user")
	}
	zctx.From(ctx).Info("Created customer account", zap.String("uid", rec.UID))
	return nil
}

// Disabled is used when no identity provider is configured.
type Disabled struct{}

// CreateAccount implements Creator.
func (Disabled) CreateAccount(ctx context.Context, _ order.AccountRequest) error {
	zctx.From(ctx).Debug("Account creation disabled")
	return nil
}
