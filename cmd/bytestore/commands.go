package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/bytestore-go/bytestore"
	"github.com/bitfsorg/bytestore-go/instruction"
	"github.com/bitfsorg/bytestore-go/metrics"
	"github.com/bitfsorg/bytestore-go/record"
)

// blobFlags are the flags shared by commands that address a blob.
type blobFlags struct {
	id      string
	version uint64
	legacy  bool
}

func (f *blobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "blob identifier, at most 32 bytes of UTF-8")
	cmd.Flags().Uint64Var(&f.version, "version", 0, "version (0 = un-versioned)")
	cmd.Flags().BoolVar(&f.legacy, "legacy", false, "use the single-record legacy layout")
}

func (f *blobFlags) identifier() (record.Identifier, error) {
	if f.id == "" {
		return record.Identifier{}, errors.New("--id is required")
	}
	return record.IdentifierFromText(f.id)
}

func (f *blobFlags) key() (bytestore.Key, error) {
	id, err := f.identifier()
	if err != nil {
		return bytestore.Key{}, err
	}
	if f.legacy && f.version != 0 {
		return bytestore.Key{}, errors.New("--legacy records are not versioned")
	}
	return bytestore.Key{ID: id, Version: f.version}, nil
}

// payloadFlags read a payload from an argument or a file and an optional
// envelope and expiry.
type payloadFlags struct {
	file    string
	expires int64
	encKey  string
	encIV   string
	encTag  string
}

func (f *payloadFlags) register(cmd *cobra.Command, withEnvelope bool) {
	cmd.Flags().StringVar(&f.file, "file", "", "read the payload from a file instead of the argument")
	if !withEnvelope {
		return
	}
	cmd.Flags().Int64Var(&f.expires, "expires", -1, "expiry as unix seconds (0 clears, omitted keeps)")
	cmd.Flags().StringVar(&f.encKey, "enc-key", "", "encryption key, hex")
	cmd.Flags().StringVar(&f.encIV, "enc-iv", "", "encryption iv, hex")
	cmd.Flags().StringVar(&f.encTag, "enc-tag", "", "encryption auth tag, hex")
}

func (f *payloadFlags) payload(args []string) ([]byte, error) {
	if f.file != "" {
		return os.ReadFile(f.file)
	}
	if len(args) == 0 {
		return nil, errors.New("payload argument or --file is required")
	}
	return []byte(args[0]), nil
}

func (f *payloadFlags) expiry() record.Optional[uint64] {
	if f.expires < 0 {
		return record.None[uint64]()
	}
	return record.Some(uint64(f.expires))
}

func (f *payloadFlags) envelope(cmd *cobra.Command) (record.Envelope, error) {
	var env record.Envelope
	for _, field := range []struct {
		flag string
		val  string
		dst  *record.Optional[[]byte]
	}{
		{"enc-key", f.encKey, &env.Key},
		{"enc-iv", f.encIV, &env.IV},
		{"enc-tag", f.encTag, &env.AuthTag},
	} {
		if !cmd.Flags().Changed(field.flag) {
			continue
		}
		b, err := hex.DecodeString(field.val)
		if err != nil {
			return env, fmt.Errorf("--%s: %w", field.flag, err)
		}
		*field.dst = record.Some(b)
	}
	return env, nil
}

// unused fails when any envelope or expiry flag was set on a path that
// would ignore it.
func (f *payloadFlags) unused(cmd *cobra.Command, path string) error {
	for _, name := range []string{"enc-key", "enc-iv", "enc-tag", "expires"} {
		if cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is not supported for %s records: %w", name, path, bytestore.ErrEnvelopeUnsupported)
		}
	}
	return nil
}

// submit signs ins with --key under the owner's next sequence number and
// executes it.
func (a *app) submit(cmd *cobra.Command, ins *instruction.Instruction) error {
	priv, err := a.privateKey()
	if err != nil {
		return err
	}
	last, err := a.store.Sequence(cmd.Context(), record.OwnerFromPublicKey(priv.PubKey()))
	if err != nil {
		return err
	}
	ins.Sequence = last + 1
	signed, err := instruction.Sign(ins, priv)
	if err != nil {
		return err
	}
	r, err := bytestore.NewProcessor(a.store).Process(cmd.Context(), signed)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "receipt %s seq=%d op=%s id=%q version=%d size=%d checksum=%s deposit=%+d\n",
		r.ID, r.Sequence, r.Op, r.Key.ID.Text(), r.Key.Version, r.Size, r.Checksum.Digest(), r.DepositDelta)
	return nil
}

func (a *app) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "`keygen` creates an owner key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := ec.NewPrivateKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private %s\n", hex.EncodeToString(priv.Serialize()))
			fmt.Fprintf(out, "owner   %s\n", record.OwnerFromPublicKey(priv.PubKey()))
			return nil
		},
	}
}

func (a *app) fundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount>",
		Short: "`fund` credits the owner's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			owner, err := a.owner()
			if err != nil {
				return err
			}
			if err := a.store.Fund(cmd.Context(), owner, amount); err != nil {
				return err
			}
			return a.printBalance(cmd, owner)
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "`balance` prints the owner's free balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			return a.printBalance(cmd, owner)
		},
	}
}

func (a *app) printBalance(cmd *cobra.Command, owner record.Owner) error {
	bal, err := a.store.Balance(cmd.Context(), owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "balance %d\n", bal)
	return nil
}

func (a *app) createCmd() *cobra.Command {
	var bf blobFlags
	var pf payloadFlags
	cmd := &cobra.Command{
		Use:   "create [payload]",
		Short: "`create` stores a new blob or the next version of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bf.key()
			if err != nil {
				return err
			}
			payload, err := pf.payload(args)
			if err != nil {
				return err
			}
			ins := &instruction.Instruction{ID: key.ID, Size: uint64(len(payload)), Payload: payload}
			switch {
			case bf.legacy:
				if err := pf.unused(cmd, "legacy"); err != nil {
					return err
				}
				ins.Op = instruction.OpCreateLegacy
			case key.Versioned():
				env, err := pf.envelope(cmd)
				if err != nil {
					return err
				}
				ins.Op = instruction.OpCreateVersioned
				ins.Version = key.Version
				ins.Envelope = env
				ins.ExpiresAt = pf.expiry()
			default:
				if err := pf.unused(cmd, "un-versioned"); err != nil {
					return err
				}
				ins.Op = instruction.OpCreate
			}
			return a.submit(cmd, ins)
		},
	}
	bf.register(cmd)
	pf.register(cmd, true)
	return cmd
}

func (a *app) appendCmd() *cobra.Command {
	var bf blobFlags
	var pf payloadFlags
	cmd := &cobra.Command{
		Use:   "append [payload]",
		Short: "`append` extends a stored blob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bf.key()
			if err != nil {
				return err
			}
			payload, err := pf.payload(args)
			if err != nil {
				return err
			}
			op := instruction.OpAppend
			if bf.legacy {
				op = instruction.OpAppendLegacy
			}
			return a.submit(cmd, &instruction.Instruction{Op: op, ID: key.ID, Version: key.Version, Payload: payload})
		},
	}
	bf.register(cmd)
	pf.register(cmd, false)
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var bf blobFlags
	var pf payloadFlags
	cmd := &cobra.Command{
		Use:   "update [payload]",
		Short: "`update` replaces the payload of a stored blob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bf.key()
			if err != nil {
				return err
			}
			payload, err := pf.payload(args)
			if err != nil {
				return err
			}
			if bf.legacy {
				if err := pf.unused(cmd, "legacy"); err != nil {
					return err
				}
				return a.submit(cmd, &instruction.Instruction{Op: instruction.OpUpdateLegacy, ID: key.ID, Payload: payload})
			}
			env, err := pf.envelope(cmd)
			if err != nil {
				return err
			}
			return a.submit(cmd, &instruction.Instruction{
				Op:        instruction.OpUpdate,
				ID:        key.ID,
				Version:   key.Version,
				Payload:   payload,
				Envelope:  env,
				ExpiresAt: pf.expiry(),
			})
		},
	}
	bf.register(cmd)
	pf.register(cmd, true)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var bf blobFlags
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "`delete` removes a blob and refunds its deposits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bf.key()
			if err != nil {
				return err
			}
			op := instruction.OpDelete
			if bf.legacy {
				op = instruction.OpDeleteLegacy
			}
			return a.submit(cmd, &instruction.Instruction{Op: op, ID: key.ID, Version: key.Version})
		},
	}
	bf.register(cmd)
	return cmd
}

func (a *app) deleteCounterCmd() *cobra.Command {
	var bf blobFlags
	cmd := &cobra.Command{
		Use:   "delete-counter",
		Short: "`delete-counter` removes the version counter of an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := bf.identifier()
			if err != nil {
				return err
			}
			return a.submit(cmd, &instruction.Instruction{Op: instruction.OpDeleteVersionCounter, ID: id})
		},
	}
	cmd.Flags().StringVar(&bf.id, "id", "", "blob identifier")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var bf blobFlags
	var raw bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "`show` prints a blob's metadata and verifies its checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bf.key()
			if err != nil {
				return err
			}
			owner, err := a.owner()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if bf.legacy {
				rec, err := a.store.GetLegacy(ctx, owner, key.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "id %q size %d checksum %s created %s updated %s\n",
					rec.ID.Text(), rec.Size, rec.Checksum.Digest(), unixTime(rec.CreatedAt), unixTime(rec.UpdatedAt))
				if raw {
					_, err = out.Write(rec.Payload)
				}
				return err
			}

			meta, err := a.store.GetMetadata(ctx, owner, key)
			if err != nil {
				return err
			}
			integrity, err := a.store.VerifyIntegrity(ctx, owner, key)
			if err != nil {
				return err
			}
			printMetadata(out, meta)
			fmt.Fprintf(out, "  verified ok, expired %t\n", integrity.Expired)
			if raw {
				br, err := a.store.GetBytes(ctx, owner, key)
				if err != nil {
					return err
				}
				_, err = out.Write(br.Payload)
				return err
			}
			return nil
		},
	}
	bf.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "also write the payload")
	return cmd
}

func (a *app) versionsCmd() *cobra.Command {
	var bf blobFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "`versions` lists the most recent versions of an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := bf.identifier()
			if err != nil {
				return err
			}
			owner, err := a.owner()
			if err != nil {
				return err
			}
			metas, err := a.store.ListVersions(cmd.Context(), owner, id, limit)
			if err != nil {
				return err
			}
			for _, m := range metas {
				printMetadata(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bf.id, "id", "", "blob identifier")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of most recent versions (0 = all)")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "`list` prints every blob, version counter and legacy record of the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			metas, err := a.store.ListMetadataByOwner(ctx, owner)
			if err != nil {
				return err
			}
			for _, m := range metas {
				printMetadata(out, m)
			}
			counters, err := a.store.ListCountersByOwner(ctx, owner)
			if err != nil {
				return err
			}
			for _, c := range counters {
				fmt.Fprintf(out, "counter %q current %d\n", c.ID.Text(), c.Current)
			}
			legacy, err := a.store.ListLegacyByOwner(ctx, owner)
			if err != nil {
				return err
			}
			for _, l := range legacy {
				fmt.Fprintf(out, "legacy %q size %d checksum %s\n", l.ID.Text(), l.Size, l.Checksum.Digest())
			}
			return nil
		},
	}
}

func (a *app) serveMetricsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "`serve-metrics` serves Prometheus metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr == "" {
				return errors.New("--addr or metrics_addr is required")
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(a.metrics))
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			a.log.WithField("addr", addr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default metrics_addr from config)")
	return cmd
}

func printMetadata(out io.Writer, m *record.Metadata) {
	fmt.Fprintf(out, "id %q version %d size %d checksum %s\n", m.ID.Text(), m.Version, m.Size, m.Checksum.Digest())
	fmt.Fprintf(out, "  created %s updated %s", unixTime(m.CreatedAt), unixTime(m.UpdatedAt))
	if m.ExpiresAt != 0 {
		fmt.Fprintf(out, " expires %s", unixTime(m.ExpiresAt))
	}
	fmt.Fprintf(out, " encrypted %t byte-address %s\n", m.IsEncrypted, m.ByteAddress)
}

func unixTime(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
