package storage

import (
	"context"
	"fmt"
	"os"

	drive "google.golang.org/api/drive/v3"
)

// GDrive stores objects as files in a Google Drive folder. The returned
// object key is the Drive file id.
type GDrive struct {
	srv      *drive.Service
	folderID string
}

func NewGDrive(srv *drive.Service, folderID string) *GDrive {
	return &GDrive{srv: srv, folderID: folderID}
}

func (g *GDrive) Name() string { return "gdrive" }

func (g *GDrive) Put(ctx context.Context, key, localPath string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	file := &drive.File{Name: key}
	if g.folderID != "" {
		file.Parents = []string{g.folderID}
	}

	created, err := g.srv.Files.Create(file).Media(src).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdrive upload: %w", err)
	}
	return created.Id, nil
}
