// Package storage uploads render artifacts to an object store.
package storage

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"bmsrender/internal/config"
)

// Provider stores a local file under an object key and returns the key the
// object is retrievable by.
type Provider interface {
	Name() string
	Put(ctx context.Context, key, localPath string) (string, error)
}

// NewProvider builds the provider selected by configuration. The bucket is a
// directory for localfs and a Drive folder identifier for gdrive.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case "localfs":
		return NewLocalFS(cfg.Bucket), nil
	case "gdrive":
		return newGDrive(cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func newGDrive(cfg *config.Config) (Provider, error) {
	s := cfg.Storage
	if s.GDriveClientID == "" || s.GDriveSecret == "" || s.GDriveRefreshTok == "" {
		return nil, fmt.Errorf("gdrive storage requires client id, secret, and refresh token")
	}

	ctx := context.Background()
	conf := &oauth2.Config{
		ClientID:     s.GDriveClientID,
		ClientSecret: s.GDriveSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	token := &oauth2.Token{RefreshToken: s.GDriveRefreshTok}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return NewGDrive(srv, cfg.Bucket), nil
}
