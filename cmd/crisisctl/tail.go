package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crisis-chat/backend/internal/notify"
	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/shared/redis"
)

func newTailCmd(loadConfig func() *config.Config) *cobra.Command {
	var count int64

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest escalations from the redis stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			client := redis.NewClient(cfg)
			defer client.Close()

			records, err := notify.NewRedisNotifier(client, cfg.Redis.Stream, 0).Recent(cmd.Context(), count)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(w, "no escalations")
				return nil
			}
			faint := color.New(color.Faint).SprintFunc()
			for _, rec := range records {
				fmt.Fprintf(w, "%s %s session=%s %s %q\n",
					faint(rec.Timestamp.Format(time.RFC3339)),
					levelColor(rec.Level).Sprint(rec.Level),
					rec.SessionID,
					rec.Resolution,
					rec.Excerpt,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&count, "count", "c", 20, "number of entries to show")
	return cmd
}
