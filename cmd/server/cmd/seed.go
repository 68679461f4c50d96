package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
	"github.com/Togather-Foundation/eventplanner/internal/storage/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load demo users, events and connections from a YAML file",
	Long: `Load demo data through the same services the API uses, so every
validation rule applies. Users that already exist are reused; events are
always created.

File layout:
  users:
    - {email: ada@example.com, password: secret1, name: Ada Lovelace}
  events:
    - organizer: ada@example.com
      title: Go Meetup
      ...
  connections:
    - [ada@example.com, grace@example.com]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readSeedFile(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)
		ctx := commandContext(cmd)

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo, err := postgres.NewRepository(pool)
		if err != nil {
			return err
		}

		report, err := applySeed(ctx, data, seedTargets{
			Users:    users.NewService(repo.Users(), repo.Events(), logger),
			Lookup:   repo.Users(),
			Events:   events.NewService(repo.Events(), logger),
			Connects: users.NewService(repo.Users(), repo.Events(), logger),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "users created: %d, reused: %d\nevents created: %d\nconnections: %d\n",
			report.UsersCreated, report.UsersReused, report.EventsCreated, report.Connections)
		return nil
	},
}

type seedEvent struct {
	Organizer string `json:"organizer"`
	events.CreateInput
}

type seedFile struct {
	Users       []users.RegisterInput `json:"users"`
	Events      []seedEvent           `json:"events"`
	Connections [][2]string           `json:"connections"`
}

type seedReport struct {
	UsersCreated  int
	UsersReused   int
	EventsCreated int
	Connections   int
}

type seedTargets struct {
	Users interface {
		Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	}
	Lookup interface {
		GetByEmail(ctx context.Context, email string) (*users.User, error)
	}
	Events interface {
		Create(ctx context.Context, organizerID string, in events.CreateInput) (*events.Event, error)
	}
	Connects interface {
		Connect(ctx context.Context, userID, targetID string) error
	}
}

func readSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var data seedFile
	if err := yaml.UnmarshalStrict(raw, &data); err != nil {
		return seedFile{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return data, nil
}

// applySeed creates users first so events and connections can refer to
// them by email.
func applySeed(ctx context.Context, data seedFile, t seedTargets) (seedReport, error) {
	var report seedReport
	ids := make(map[string]string, len(data.Users))

	for _, in := range data.Users {
		u, err := t.Users.Register(ctx, in)
		if errors.Is(err, users.ErrEmailTaken) {
			u, err = t.Lookup.GetByEmail(ctx, in.Email)
			if err != nil {
				return report, fmt.Errorf("load existing user %s: %w", in.Email, err)
			}
			report.UsersReused++
		} else if err != nil {
			return report, fmt.Errorf("register %s: %w", in.Email, err)
		} else {
			report.UsersCreated++
		}
		ids[u.Email] = u.ID
	}

	resolve := func(email string) (string, error) {
		if id, ok := ids[email]; ok {
			return id, nil
		}
		u, err := t.Lookup.GetByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("unknown user %s: %w", email, err)
		}
		ids[email] = u.ID
		return u.ID, nil
	}

	for _, e := range data.Events {
		organizerID, err := resolve(e.Organizer)
		if err != nil {
			return report, err
		}
		if _, err := t.Events.Create(ctx, organizerID, e.CreateInput); err != nil {
			return report, fmt.Errorf("create event %q: %w", e.Title, err)
		}
		report.EventsCreated++
	}

	for _, pair := range data.Connections {
		a, err := resolve(pair[0])
		if err != nil {
			return report, err
		}
		b, err := resolve(pair[1])
		if err != nil {
			return report, err
		}
		if err := t.Connects.Connect(ctx, a, b); err != nil && !errors.Is(err, users.ErrAlreadyConnected) {
			return report, fmt.Errorf("connect %s and %s: %w", pair[0], pair[1], err)
		}
		report.Connections++
	}
	return report, nil
}
