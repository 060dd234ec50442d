package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ChrisHK/label-printer/internal/checksum"
	"github.com/ChrisHK/label-printer/pkg/client"

	"github.com/spf13/cobra"
)

func newPushCommand() *cobra.Command {
	var (
		server  string
		apiKey  string
		batchID string
		source  string
		retries int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Submit a batch to a running server",
		Long: "Submit a batch to a running server. The input is either a JSON array of items " +
			"or a full request object with batch_id, items, source and metadata.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			req, err := parseBatch(data)
			if err != nil {
				return err
			}
			if batchID != "" {
				req.BatchID = batchID
			}
			if source != "" {
				req.Source = source
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			c := client.New(server, client.WithAPIKey(apiKey), client.WithRetries(retries))
			res, err := c.Ingest(ctx, req)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			return out.Encode(res)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch id (overrides the file)")
	cmd.Flags().StringVar(&source, "source", "", "batch source (overrides the file)")
	cmd.Flags().IntVar(&retries, "retries", 3, "retries on transport errors and 5xx answers")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall deadline")
	return cmd
}

// parseBatch accepts a bare item array or a request object.
func parseBatch(data []byte) (client.IngestRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		items, err := checksum.DecodeItems(trimmed)
		if err != nil {
			return client.IngestRequest{}, err
		}
		req := client.IngestRequest{Items: make([]client.Item, len(items))}
		for i, it := range items {
			req.Items[i] = client.Item(it)
		}
		return req, nil
	}

	var req client.IngestRequest
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return client.IngestRequest{}, fmt.Errorf("invalid batch file: %w", err)
	}
	return req, nil
}
