// Command rmbridge is a small CLI over the rmbridge client: pair a
// device, inspect the file system, and upload documents.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/pkg/auth"
	"github.com/rmbridge/rmbridge/pkg/filesystem"
	"github.com/rmbridge/rmbridge/pkg/remarkable"
	"github.com/rmbridge/rmbridge/pkg/tree"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagTokenFile string
)

func main() {
	root := &cobra.Command{
		Use:           "rmbridge",
		Short:         "reMarkable Cloud client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Init(logging.Config{
				Level:  flagLogLevel,
				Format: flagLogFormat,
			})
		},
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "log format (console, json)")
	root.PersistentFlags().StringVar(&flagTokenFile, "token-file", "", "token file path (default: "+auth.TokenFilePath()+")")

	root.AddCommand(pairCmd(), statusCmd(), lsCmd(), treeCmd(), uploadCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rmbridge:", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func pairCmd() *cobra.Command {
	var (
		code        string
		deviceID    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair this machine with a one-time code from my.remarkable.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceID == "" {
				deviceID = auth.NewDeviceID()
			}
			client, err := remarkable.Pair(cmd.Context(), deviceID, auth.Description(description), code, remarkable.Config{})
			if err != nil {
				return err
			}

			tf := &auth.TokenFile{
				DeviceToken: client.Device().PairToken.Raw,
				DeviceID:    client.Device().ID,
				SavedAt:     time.Now(),
			}
			if session, err := client.Session(cmd.Context()); err == nil {
				tf.SessionToken = session.Token
			}
			if err := auth.SaveTokenFile(flagTokenFile, tf); err != nil {
				return fmt.Errorf("save token file: %w", err)
			}

			fmt.Printf("paired device %s\n", client.Device().ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "one-time pairing code (required)")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device id (default: generated)")
	cmd.Flags().StringVar(&description, "description", string(auth.BrowserChrome), "device description")
	cmd.MarkFlagRequired("code")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the paired device and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			fmt.Printf("device:      %s\n", client.Device().ID)
			fmt.Printf("description: %s\n", client.Device().Description)

			session, err := client.Session(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("session:     valid until %s\n", session.ExpiresAt)
			return nil
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the file system snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			snapshot, err := client.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			for _, folder := range sortedFolders(snapshot.RootFolders()) {
				printFolder(folder, 0)
			}
			for _, doc := range sortedDocuments(snapshot.RootDocuments()) {
				fmt.Printf("%s (%s)\n", doc.Name, doc.FileType)
			}
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Resolve and print the raw hash tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			root, err := client.HashTree(cmd.Context())
			if err != nil {
				return err
			}
			printEntry(root, 0)
			return nil
		},
	}
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload PDF or EPUB files to the cloud root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadClient()
			if err != nil {
				return err
			}
			for _, path := range args {
				ref, err := client.UploadFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Printf("uploaded %s as %s\n", path, ref.ID)
			}
			return nil
		},
	}
}

// loadClient builds a client from the saved token file, reusing the last
// session token when one was saved.
func loadClient() (*remarkable.Client, error) {
	tf, err := auth.LoadTokenFile(flagTokenFile)
	if err != nil {
		return nil, fmt.Errorf("no saved credentials, run `rmbridge pair` first: %w", err)
	}
	return remarkable.New(remarkable.Config{
		DeviceToken:  tf.DeviceToken,
		SessionToken: tf.SessionToken,
	})
}

func printFolder(folder *filesystem.Folder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s/\n", indent, folder.Name)
	for _, sub := range sortedFolders(folder.Folders) {
		printFolder(sub, depth+1)
	}
	for _, doc := range sortedDocuments(folder.Documents) {
		fmt.Printf("%s  %s (%s)\n", indent, doc.Name, doc.FileType)
	}
}

func printEntry(entry *tree.Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	switch entry.Kind {
	case tree.KindRoot:
		fmt.Printf("%s%s (schema %d)\n", indent, entry.Hash, entry.SchemaVersion)
	case tree.KindCollection:
		fmt.Printf("%s%s %s/\n", indent, shortHash(entry.Hash), entry.DocumentID)
	case tree.KindDocument:
		fmt.Printf("%s%s %s (%d bytes)\n", indent, shortHash(entry.Hash), entry.DocumentID, entry.Size)
	}
	for _, child := range entry.Entries {
		printEntry(child, depth+1)
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func sortedFolders(folders []*filesystem.Folder) []*filesystem.Folder {
	sorted := append([]*filesystem.Folder(nil), folders...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

func sortedDocuments(docs []*filesystem.Document) []*filesystem.Document {
	sorted := append([]*filesystem.Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}
