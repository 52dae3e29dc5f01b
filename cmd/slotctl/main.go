package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"seedslot/go-backend/internal/adapters/rpc"
	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/client"
	"seedslot/go-backend/internal/keys"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/program"
	"seedslot/go-backend/internal/securestore"
)

const (
	exitOK           = 0
	exitInvalidInput = 10
	exitRPCFailed    = 20
	exitRejected     = 30
	exitKeyFailed    = 40
)

const defaultKeyFile = "seedslot-key.json"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitInvalidInput
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stderr)
		return exitInvalidInput
	}
	out, err := cmd(args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return exitCodeFor(err)
	}
	if out == nil {
		return exitOK
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return exitRPCFailed
	}
	return exitOK
}

var commands map[string]func([]string) (any, error)

func init() {
	commands = map[string]func([]string) (any, error){
		"keygen":          runKeygen,
		"import-key":      runImportKey,
		"address":         runAddress,
		"derive":          runDerive,
		"airdrop":         runAirdrop,
		"balance":         runBalance,
		"receipt":         runReceipt,
		"health":          runHealth,
		"create-entry":    runCreateEntry,
		"update-entry":    runUpdateEntry,
		"delete-entry":    runDeleteEntry,
		"init-poll":       runInitPoll,
		"init-candidate":  runInitCandidate,
		"vote":            runVote,
		"fetch-entry":     runFetchEntry,
		"list-entries":    runListEntries,
		"fetch-poll":      runFetchPoll,
		"list-polls":      runListPolls,
		"fetch-candidate": runFetchCandidate,
		"list-candidates": runListCandidates,
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func invalidInput(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func exitCodeFor(err error) int {
	var usage usageError
	var remote *rpc.RemoteError
	switch {
	case errors.As(err, &usage), errors.Is(err, flag.ErrHelp):
		return exitInvalidInput
	case errors.Is(err, keys.ErrKeyFileNotFound), errors.Is(err, keys.ErrInvalidMnemonic),
		errors.Is(err, keys.ErrInvalidPrivateKey), errors.Is(err, keys.ErrMnemonicRequired),
		errors.Is(err, securestore.ErrAuthFailed):
		return exitKeyFailed
	case errors.As(err, &remote):
		if _, ok := program.Classify(err); ok {
			return exitRejected
		}
		return exitRPCFailed
	default:
		return exitRPCFailed
	}
}

// common holds the flags every networked command understands.
type common struct {
	rpcAddr    *string
	rpcToken   *string
	keyFile    *string
	passphrase *string
	journalID  *string
	votingID   *string
	timeout    *time.Duration
}

func newFlagSet(name string) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &common{
		rpcAddr:    fs.String("rpc-addr", envOr("SEEDSLOT_RPC_ADDR", rpc.DefaultRPCAddr), "ledgerd rpc address host:port or URL"),
		rpcToken:   fs.String("rpc-token", os.Getenv("SEEDSLOT_RPC_TOKEN"), "ledgerd rpc token"),
		keyFile:    fs.String("key", envOr("SEEDSLOT_KEY_FILE", defaultKeyFile), "signer key file"),
		passphrase: fs.String("passphrase", os.Getenv("SEEDSLOT_KEY_PASSPHRASE"), "key file passphrase"),
		journalID:  fs.String("journal-program", program.DefaultJournalProgramID.String(), "journal program id"),
		votingID:   fs.String("voting-program", program.DefaultVotingProgramID.String(), "voting program id"),
		timeout:    fs.Duration("timeout", 30*time.Second, "overall command timeout"),
	}
	return fs, c
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return invalidInput("%s: %v", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return invalidInput("%s: unexpected arguments %v", fs.Name(), fs.Args())
	}
	return nil
}

func (c *common) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *c.timeout)
}

func (c *common) rpc() *client.RPCClient {
	return client.NewRPCClient(*c.rpcAddr, *c.rpcToken)
}

func (c *common) programs() (*program.JournalProgram, *program.VotingProgram, error) {
	journalID, err := address.Parse(*c.journalID)
	if err != nil {
		return nil, nil, invalidInput("journal-program: %v", err)
	}
	votingID, err := address.Parse(*c.votingID)
	if err != nil {
		return nil, nil, invalidInput("voting-program: %v", err)
	}
	return program.NewJournalProgram(journalID), program.NewVotingProgram(votingID), nil
}

func (c *common) signer() (*keys.Keypair, error) {
	return keys.Load(*c.keyFile, *c.passphrase)
}

func (c *common) client() (*client.Client, error) {
	journal, voting, err := c.programs()
	if err != nil {
		return nil, err
	}
	return client.New(client.Options{Submitter: c.rpc(), Journal: journal, Voting: voting})
}

// resolveAddress takes an explicit address or falls back to the key file's signer.
func (c *common) resolveAddress(raw string) (address.Address, error) {
	if strings.TrimSpace(raw) != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			return address.Zero, invalidInput("address: %v", err)
		}
		return addr, nil
	}
	kp, err := c.signer()
	if err != nil {
		return address.Zero, err
	}
	return kp.Address, nil
}

func runKeygen(args []string) (any, error) {
	fs, c := newFlagSet("keygen")
	force := fs.Bool("force", false, "overwrite an existing key file")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if keys.Exists(*c.keyFile) && !*force {
		return nil, invalidInput("keygen: %s already exists; pass --force to overwrite", *c.keyFile)
	}
	kp, err := keys.Generate()
	if err != nil {
		return nil, err
	}
	if err := keys.Save(*c.keyFile, *c.passphrase, kp); err != nil {
		return nil, err
	}
	return map[string]any{
		"address":  kp.Address.String(),
		"key_file": *c.keyFile,
		"sealed":   *c.passphrase != "",
		"mnemonic": kp.Mnemonic,
	}, nil
}

func runImportKey(args []string) (any, error) {
	fs, c := newFlagSet("import-key")
	mnemonic := fs.String("mnemonic", "", "bip39 mnemonic")
	secret := fs.String("secret-key", "", "base58 secret key or JSON byte array")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	var (
		kp  *keys.Keypair
		err error
	)
	switch {
	case *mnemonic != "" && *secret != "":
		return nil, invalidInput("import-key: pass --mnemonic or --secret-key, not both")
	case *mnemonic != "":
		kp, err = keys.FromMnemonic(*mnemonic)
	case *secret != "":
		kp, err = keys.DecodePrivateKey(*secret)
	default:
		return nil, invalidInput("import-key: --mnemonic or --secret-key is required")
	}
	if err != nil {
		return nil, err
	}
	if err := keys.Save(*c.keyFile, *c.passphrase, kp); err != nil {
		return nil, err
	}
	return map[string]any{"address": kp.Address.String(), "key_file": *c.keyFile}, nil
}

func runAddress(args []string) (any, error) {
	fs, c := newFlagSet("address")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	kp, err := c.signer()
	if err != nil {
		return nil, err
	}
	return map[string]string{"address": kp.Address.String()}, nil
}

// runDerive computes slot addresses locally; it never contacts ledgerd.
func runDerive(args []string) (any, error) {
	fs, c := newFlagSet("derive")
	kind := fs.String("kind", "", "journal_entry | poll | candidate")
	title := fs.String("title", "", "journal entry title")
	owner := fs.String("owner", "", "journal entry owner (defaults to the key file signer)")
	pollID := fs.Uint64("poll-id", 0, "poll id")
	name := fs.String("name", "", "candidate name")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	journal, voting, err := c.programs()
	if err != nil {
		return nil, err
	}
	var (
		prog = voting.ID()
		addr address.Address
		bump uint8
	)
	switch *kind {
	case "journal_entry":
		ownerAddr, err := c.resolveAddress(*owner)
		if err != nil {
			return nil, err
		}
		prog = journal.ID()
		addr, bump, err = program.JournalEntryAddress(prog, *title, ownerAddr)
		if err != nil {
			return nil, invalidInput("derive: %v", err)
		}
	case "poll":
		addr, bump, err = program.PollAddress(prog, *pollID)
	case "candidate":
		addr, bump, err = program.CandidateAddress(prog, *pollID, *name)
	default:
		return nil, invalidInput("derive: unknown --kind %q", *kind)
	}
	if err != nil {
		return nil, invalidInput("derive: %v", err)
	}
	return map[string]any{"program": prog.String(), "address": addr.String(), "bump": bump}, nil
}

func runAirdrop(args []string) (any, error) {
	fs, c := newFlagSet("airdrop")
	to := fs.String("address", "", "recipient (defaults to the key file signer)")
	lamports := fs.Uint64("lamports", 1_000_000_000, "lamports to credit")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	addr, err := c.resolveAddress(*to)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().Airdrop(ctx, addr, *lamports)
}

func runBalance(args []string) (any, error) {
	fs, c := newFlagSet("balance")
	of := fs.String("address", "", "account (defaults to the key file signer)")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	addr, err := c.resolveAddress(*of)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().Balance(ctx, addr)
}

func runReceipt(args []string) (any, error) {
	fs, c := newFlagSet("receipt")
	txID := fs.String("tx", "", "transaction id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *txID == "" {
		return nil, invalidInput("receipt: --tx is required")
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().Receipt(ctx, *txID)
}

func runHealth(args []string) (any, error) {
	fs, c := newFlagSet("health")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().Health(ctx)
}

// submit runs one of the six lifecycle operations and prints its receipt.
func submit(name string, args []string, bind func(*flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error)) (any, error) {
	fs, c := newFlagSet(name)
	do := bind(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	kp, err := c.signer()
	if err != nil {
		return nil, err
	}
	cl, err := c.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	receipt, err := do(ctx, cl, kp)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func runCreateEntry(args []string) (any, error) {
	return submit("create-entry", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		title := fs.String("title", "", "entry title")
		message := fs.String("message", "", "entry message")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.CreateJournalEntry(ctx, kp, *title, *message)
		}
	})
}

func runUpdateEntry(args []string) (any, error) {
	return submit("update-entry", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		title := fs.String("title", "", "entry title")
		message := fs.String("message", "", "new message")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.UpdateJournalEntry(ctx, kp, *title, *message)
		}
	})
}

func runDeleteEntry(args []string) (any, error) {
	return submit("delete-entry", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		title := fs.String("title", "", "entry title")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.DeleteJournalEntry(ctx, kp, *title)
		}
	})
}

func runInitPoll(args []string) (any, error) {
	return submit("init-poll", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		pollID := fs.Uint64("poll-id", 0, "poll id")
		description := fs.String("description", "", "poll description")
		start := fs.Uint64("start", 0, "poll start (unix seconds)")
		end := fs.Uint64("end", 0, "poll end (unix seconds)")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.InitializePoll(ctx, kp, program.InitializePollArgs{
				PollID:      *pollID,
				Description: *description,
				PollStart:   *start,
				PollEnd:     *end,
			})
		}
	})
}

func runInitCandidate(args []string) (any, error) {
	return submit("init-candidate", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		pollID := fs.Uint64("poll-id", 0, "poll id")
		name := fs.String("name", "", "candidate name")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.InitializeCandidate(ctx, kp, *pollID, *name)
		}
	})
}

func runVote(args []string) (any, error) {
	return submit("vote", args, func(fs *flag.FlagSet) func(context.Context, *client.Client, *keys.Keypair) (ledger.Receipt, error) {
		pollID := fs.Uint64("poll-id", 0, "poll id")
		name := fs.String("name", "", "candidate name")
		return func(ctx context.Context, cl *client.Client, kp *keys.Keypair) (ledger.Receipt, error) {
			return cl.Vote(ctx, kp, *pollID, *name)
		}
	})
}

func runFetchEntry(args []string) (any, error) {
	fs, c := newFlagSet("fetch-entry")
	owner := fs.String("owner", "", "entry owner (defaults to the key file signer)")
	title := fs.String("title", "", "entry title")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ownerAddr, err := c.resolveAddress(*owner)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().FetchJournalEntry(ctx, ownerAddr, *title)
}

func runListEntries(args []string) (any, error) {
	fs, c := newFlagSet("list-entries")
	owner := fs.String("owner", "", "only entries of this owner")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ownerAddr := address.Zero
	if *owner != "" {
		parsed, err := address.Parse(*owner)
		if err != nil {
			return nil, invalidInput("owner: %v", err)
		}
		ownerAddr = parsed
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().ListJournalEntries(ctx, ownerAddr)
}

func runFetchPoll(args []string) (any, error) {
	fs, c := newFlagSet("fetch-poll")
	pollID := fs.Uint64("poll-id", 0, "poll id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().FetchPoll(ctx, *pollID)
}

func runListPolls(args []string) (any, error) {
	fs, c := newFlagSet("list-polls")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().ListPolls(ctx)
}

func runFetchCandidate(args []string) (any, error) {
	fs, c := newFlagSet("fetch-candidate")
	pollID := fs.Uint64("poll-id", 0, "poll id")
	name := fs.String("name", "", "candidate name")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().FetchCandidate(ctx, *pollID, *name)
}

func runListCandidates(args []string) (any, error) {
	fs, c := newFlagSet("list-candidates")
	pollID := fs.Uint64("poll-id", 0, "poll id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	return c.rpc().ListCandidates(ctx, *pollID)
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func printUsage(w io.Writer) {
	lines := []string{
		"slotctl <command> [flags]",
		"keys:",
		"  keygen          [--key path] [--passphrase p] [--force]",
		"  import-key      (--mnemonic words | --secret-key base58) [--key path] [--passphrase p]",
		"  address         [--key path]",
		"  derive          --kind journal_entry|poll|candidate [--title t] [--owner addr] [--poll-id n] [--name c]",
		"ledger:",
		"  airdrop         [--address addr] [--lamports n]",
		"  balance         [--address addr]",
		"  receipt         --tx id",
		"  health",
		"journal:",
		"  create-entry    --title t --message m",
		"  update-entry    --title t --message m",
		"  delete-entry    --title t",
		"  fetch-entry     --title t [--owner addr]",
		"  list-entries    [--owner addr]",
		"voting:",
		"  init-poll       --poll-id n --description d [--start s] [--end e]",
		"  init-candidate  --poll-id n --name c",
		"  vote            --poll-id n --name c",
		"  fetch-poll      --poll-id n",
		"  list-polls",
		"  fetch-candidate --poll-id n --name c",
		"  list-candidates --poll-id n",
		"common flags: --rpc-addr host:port --rpc-token t --key path --passphrase p --timeout d",
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}
