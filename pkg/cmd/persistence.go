package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remedyhq/remedy/pkg/persistence"
	"github.com/remedyhq/remedy/pkg/persistence/file"
	"github.com/remedyhq/remedy/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence implementation based on the URL
// scheme: postgres URLs get the SQL store, everything else is treated as a
// file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
