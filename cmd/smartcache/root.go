package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goforj/smartcache"
)

const (
	flagBackend = "backend"
	flagHost    = "host"
	flagPrefix  = "prefix"
	flagVerbose = "verbose"
)

type app struct {
	v        *viper.Viper
	registry *smartcache.Registry
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "smartcache",
		Short:         "Inspect and manage memoized entries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if a.v.GetBool(flagVerbose) {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.registry == nil {
				return nil
			}
			return a.registry.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagBackend, "memory", "backend name")
	flags.StringSlice(flagHost, nil, "backend hosts (repeat or comma separate)")
	flags.String(flagPrefix, "smartcache", "key prefix used by shared backends")
	flags.Bool(flagVerbose, false, "log backend activity")
	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix(smartcache.EnvPrefix)
	a.v.AutomaticEnv()

	root.AddCommand(
		a.purgeCmd(),
		a.deleteCmd(),
		a.statCmd(),
		a.keyCmd(),
		a.representCmd(),
	)
	return root
}

// store opens the configured backend.
func (a *app) store(cmd *cobra.Command) (smartcache.Store, error) {
	if a.registry == nil {
		a.registry = smartcache.NewRegistry(smartcache.WithPrefix(a.v.GetString(flagPrefix)))
	}
	backend := a.v.GetString(flagBackend)
	hosts := a.hosts()
	a.logger.Debug("opening backend", "backend", backend, "hosts", hosts)
	store, err := a.registry.Open(cmd.Context(), backend, hosts...)
	if err != nil {
		return nil, errors.Wrapf(err, "open backend %q", backend)
	}
	return store, nil
}

// hosts merges --host and SMARTCACHE_HOST. A nil result selects driver defaults.
func (a *app) hosts() []string {
	raw := a.v.GetStringSlice(flagHost)
	var out []string
	for _, item := range raw {
		for _, h := range strings.Split(item, ",") {
			if h = strings.TrimSpace(h); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every entry under the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store(cmd)
			if err != nil {
				return err
			}
			if err := store.Flush(cmd.Context()); err != nil {
				return errors.Wrap(err, "purge")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", store.Driver())
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete entries by cache key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd)
			if err != nil {
				return err
			}
			for _, key := range args {
				if err := store.Delete(cmd.Context(), key); err != nil {
					return errors.Wrapf(err, "delete %q", key)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			}
			return nil
		},
	}
}

type statOutput struct {
	Key       string                      `json:"key"`
	Found     bool                        `json:"found"`
	StoredAt  *time.Time                  `json:"stored_at,omitempty"`
	AgeSecs   float64                     `json:"age_seconds,omitempty"`
	ValueSize int                         `json:"value_bytes,omitempty"`
	Error     *smartcache.ErrorDescriptor `json:"error,omitempty"`
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <key>",
		Short: "Describe the entry stored under a cache key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd)
			if err != nil {
				return err
			}
			out := statOutput{Key: args[0]}
			body, ok, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrapf(err, "read %q", args[0])
			}
			if ok {
				meta, err := smartcache.InspectEntry(body)
				if err != nil {
					return errors.Wrapf(err, "inspect %q", args[0])
				}
				out.Found = true
				out.StoredAt = &meta.StoredAt
				out.AgeSecs = time.Since(meta.StoredAt).Seconds()
				out.ValueSize = meta.ValueSize
				out.Error = meta.Err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func (a *app) keyCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "key <func> [json-arg]...",
		Short: "Print the cache key a call would use",
		Long: "Print the cache key for a memoized function called with the given JSON arguments.\n" +
			"Pipe it to delete or stat to manage a single entry.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, raw := args[0], args[1:]
			values := make([]any, len(raw))
			for i, r := range raw {
				v, err := decodeJSONArg(r)
				if err != nil {
					return errors.Wrapf(err, "argument %d", i)
				}
				values[i] = v
			}
			if len(params) == 0 {
				params = make([]string, len(values))
				for i := range params {
					params[i] = fmt.Sprintf("arg%d", i)
				}
			}
			spec, err := smartcache.NewKeySpec(params, nil, nil, nil)
			if err != nil {
				return err
			}
			key, err := spec.Build(smartcache.CollapseName(name), values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&params, "params", nil, "parameter names, in order")
	return cmd
}

func (a *app) representCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "represent <json>",
		Short: "Print the unique representation of a JSON value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := decodeJSONArg(args[0])
			if err != nil {
				return err
			}
			rep, err := smartcache.Represent(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

// decodeJSONArg keeps numbers exact so 1 and 1.0 stay distinct.
func decodeJSONArg(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "invalid json")
	}
	return v, nil
}
