// Command just-ease is the beneficiary and caseworker client for the Just-Ease service.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/AngiE300512/just-ease/internal/api"
	"github.com/AngiE300512/just-ease/internal/convert"
	"github.com/AngiE300512/just-ease/internal/eligibility"
	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/gate"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
	"github.com/AngiE300512/just-ease/internal/passkey/softauth"
)

var version = "dev"

const rpName = "Just-Ease"

var flagAddr = &cli.StringFlag{
	Name:    "addr",
	Value:   "localhost:8443",
	Usage:   "server address",
	EnvVars: []string{"JE_ADDR"},
}
var flagCACert = &cli.StringFlag{
	Name:  "cacert",
	Usage: "PEM file with the CA that signed the server certificate",
}
var flagInsecure = &cli.BoolFlag{
	Name:  "insecure",
	Usage: "skip TLS verification (dev only)",
}
var flagPlaintext = &cli.BoolFlag{
	Name:  "plaintext",
	Usage: "connect without TLS, for servers started with -dev",
}
var flagOrigin = &cli.StringFlag{
	Name:    "origin",
	Value:   "https://localhost",
	Usage:   "relying party origin passkeys are bound to",
	EnvVars: []string{"JE_ORIGIN"},
}
var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 15 * time.Second,
	Usage: "per-command deadline",
}
var flagVerbose = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "log diagnostics to stderr",
}
var flagNoPasskey = &cli.BoolFlag{
	Name:  "no-passkey",
	Usage: "behave as a device without a platform authenticator",
}

var flagEmail = &cli.StringFlag{Name: "email", Required: true}
var flagPassword = &cli.StringFlag{
	Name:    "password",
	Usage:   "password; read from stdin when empty",
	EnvVars: []string{"JE_PASSWORD"},
}
var flagDocID = &cli.StringFlag{Name: "id", Usage: "document id", Required: true}
var flagOut = &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, stdout when empty"}

// runtime carries the global flags into command actions.
type runtime struct {
	dc        dialConfig
	origin    string
	timeout   time.Duration
	noPasskey bool
	log       *zap.Logger
	extra     []grpc.DialOption
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describeErr(err))
		os.Exit(1)
	}
}

func newApp(extra ...grpc.DialOption) *cli.App {
	r := &runtime{log: zap.NewNop(), extra: extra}
	return &cli.App{
		Name:    "just-ease",
		Usage:   "document vault and consent client",
		Version: version,
		Flags: []cli.Flag{
			flagAddr, flagCACert, flagInsecure, flagPlaintext, flagOrigin, flagTimeout, flagVerbose, flagNoPasskey,
		},
		Before: r.setup,
		After: func(*cli.Context) error {
			_ = r.log.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print the client version",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version)
					return nil
				},
			},
			{
				Name:  "register",
				Usage: "create a beneficiary account",
				Flags: []cli.Flag{
					flagEmail, flagPassword,
					&cli.StringFlag{Name: "name", Usage: "full name", Required: true},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "udid", Usage: "UDID card number"},
				},
				Action: r.register,
			},
			{
				Name:   "login",
				Usage:  "sign in as a beneficiary",
				Flags:  []cli.Flag{flagEmail, flagPassword},
				Action: r.login,
			},
			{
				Name:  "logout",
				Usage: "forget the beneficiary session",
				Action: func(*cli.Context) error {
					return dropToken(beneficiaryToken)
				},
			},
			{
				Name:  "passkey",
				Usage: "manage the device passkey",
				Subcommands: []*cli.Command{
					{Name: "enroll", Usage: "create a passkey on this device", Action: r.enroll},
					{Name: "status", Usage: "show the enrolled credential", Action: r.passkeyStatus},
				},
			},
			{
				Name:   "unlock",
				Usage:  "verify the user, then list the vault",
				Action: r.unlock,
			},
			{
				Name:  "docs",
				Usage: "document vault",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "list documents", Action: r.docsList},
					{
						Name:  "upload",
						Usage: "upload a document",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "category", Usage: "document category, e.g. aadhaar_card", Required: true},
							&cli.StringFlag{Name: "file", Usage: "path or - for stdin", Required: true},
							&cli.StringFlag{Name: "name", Usage: "file name stored with the document"},
							&cli.StringFlag{Name: "type", Usage: "content type, sniffed when empty"},
						},
						Action: r.docsUpload,
					},
					{Name: "get", Usage: "download a document", Flags: []cli.Flag{flagDocID, flagOut}, Action: r.docsGet},
					{Name: "rm", Usage: "delete a document", Flags: []cli.Flag{flagDocID}, Action: r.docsDelete},
					{Name: "checklist", Usage: "show application readiness", Action: r.docsChecklist},
					{
						Name:   "log",
						Usage:  "show caseworker access to the vault",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Value: 50}},
						Action: r.docsLog,
					},
				},
			},
			{
				Name:  "ngo",
				Usage: "caseworker commands",
				Subcommands: []*cli.Command{
					{Name: "login", Usage: "start a caseworker session", Flags: []cli.Flag{flagEmail, flagPassword}, Action: r.ngoLogin},
					{Name: "logout", Usage: "end the caseworker session", Action: r.ngoLogout},
					{
						Name:  "lookup",
						Usage: "find a beneficiary by shared id",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "shared-id", Usage: "UDID number the beneficiary shared", Required: true},
							&cli.StringFlag{Name: "secret", Usage: "secret the beneficiary shared", Required: true},
						},
						Action: r.ngoLookup,
					},
					{
						Name:   "view",
						Usage:  "view a beneficiary document",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "beneficiary", Required: true}, flagDocID, flagOut},
						Action: r.ngoOpen(model.AccessView),
					},
					{
						Name:   "download",
						Usage:  "get a short-lived download link",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "beneficiary", Required: true}, flagDocID},
						Action: r.ngoOpen(model.AccessDownload),
					},
				},
			},
			{
				Name:  "eligibility",
				Usage: "check pension eligibility",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "offline", Usage: "evaluate locally without contacting the server"},
					&cli.BoolFlag{Name: "caregiver", Usage: "answering on behalf of someone else"},
					&cli.BoolFlag{Name: "vision"},
					&cli.BoolFlag{Name: "locomotor"},
					&cli.BoolFlag{Name: "acid-attack"},
					&cli.BoolFlag{Name: "hearing"},
					&cli.BoolFlag{Name: "mental-neuro"},
					&cli.BoolFlag{Name: "speech-language"},
					&cli.BoolFlag{Name: "chronic-blood"},
					&cli.BoolFlag{Name: "chronic-neuro"},
					&cli.BoolFlag{Name: "severity-40", Usage: "certificate shows at least 40% disability"},
					&cli.BoolFlag{Name: "severity-80", Usage: "at least 80%, high support needs"},
				},
				Action: r.eligibility,
			},
		},
	}
}

func (r *runtime) setup(c *cli.Context) error {
	r.dc = dialConfig{
		addr:      c.String(flagAddr.Name),
		caPath:    c.String(flagCACert.Name),
		insecure:  c.Bool(flagInsecure.Name),
		plaintext: c.Bool(flagPlaintext.Name),
	}
	r.origin = c.String(flagOrigin.Name)
	r.timeout = c.Duration(flagTimeout.Name)
	r.noPasskey = c.Bool(flagNoPasskey.Name)
	if c.Bool(flagVerbose.Name) {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		r.log = l
	}
	return nil
}

func (r *runtime) ctx(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, r.timeout)
}

// connect dials the server, authenticating with the stored token of kind when kind is set.
func (r *runtime) connect(kind string) (*grpc.ClientConn, *api.Client, tokenFile, error) {
	var tf tokenFile
	if kind != "" {
		var err error
		if tf, err = loadToken(kind); err != nil {
			return nil, nil, tf, err
		}
	}
	cc, cl, err := dial(r.dc, tf.AccessToken, r.extra...)
	return cc, cl, tf, err
}

func (r *runtime) passkeyClient() (*passkey.Client, *softauth.Authenticator, error) {
	rp, err := passkey.NewRelyingParty(r.origin, rpName)
	if err != nil {
		return nil, nil, err
	}
	var opts []softauth.Option
	if r.noPasskey {
		opts = append(opts, softauth.Unavailable())
	}
	a, err := loadAuthenticator(opts...)
	if err != nil {
		return nil, nil, err
	}
	return passkey.NewClient(a, rp, passkey.WithLogger(r.log)), a, nil
}

// ---- beneficiary ----

func (r *runtime) register(c *cli.Context) error {
	pw, err := password(c)
	if err != nil {
		return err
	}
	cc, cl, _, err := r.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.Register(ctx, &api.RegisterRequest{
		Email:      c.String("email"),
		Password:   pw,
		FullName:   c.String("name"),
		Phone:      c.String("phone"),
		UDIDNumber: c.String("udid"),
	})
	if err != nil {
		return fromStatus(err)
	}
	fmt.Fprintf(c.App.Writer, "registered %s\n", res.UserID)
	return nil
}

func (r *runtime) login(c *cli.Context) error {
	pw, err := password(c)
	if err != nil {
		return err
	}
	cc, cl, _, err := r.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.Login(ctx, &api.LoginRequest{Email: c.String("email"), Password: pw})
	if err != nil {
		return fromStatus(err)
	}
	tf := tokenFile{AccessToken: res.AccessToken, ExpiresAt: res.ExpiresAt, Subject: res.UserID, Label: res.FullName}
	if err := saveToken(beneficiaryToken, tf); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "signed in as %s until %s\n", res.FullName, res.ExpiresAt.Local().Format(time.RFC822))
	return nil
}

func (r *runtime) enroll(c *cli.Context) error {
	cc, cl, tf, err := r.connect(beneficiaryToken)
	if err != nil {
		return err
	}
	defer cc.Close()
	pk, auth, err := r.passkeyClient()
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx(c)
	defer cancel()

	label := tf.Label
	if label == "" {
		label = tf.Subject
	}
	en, err := pk.Enroll(ctx, tf.Subject, label, tf.Label)
	if err != nil {
		return err
	}
	if err := saveAuthenticator(auth); err != nil {
		return err
	}
	st, err := cl.RegisterPasskey(ctx, &api.RegisterPasskeyRequest{CredentialID: en.CredentialID, PublicKey: en.PublicKey})
	if err != nil {
		auth.Forget(en.CredentialID)
		_ = saveAuthenticator(auth)
		return fromStatus(err)
	}
	printJSON(c.App.Writer, st)
	return nil
}

func (r *runtime) passkeyStatus(c *cli.Context) error {
	cc, cl, _, err := r.connect(beneficiaryToken)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	st, err := cl.PasskeyStatus(ctx)
	if err != nil {
		return fromStatus(err)
	}
	printJSON(c.App.Writer, st)
	return nil
}

// openVault unlocks the gate over a beneficiary connection. The caller closes the connection.
func (r *runtime) openVault(c *cli.Context) (*gate.Gate, *grpc.ClientConn, *api.Client, error) {
	cc, cl, _, err := r.connect(beneficiaryToken)
	if err != nil {
		return nil, nil, nil, err
	}
	pk, auth, err := r.passkeyClient()
	if err != nil {
		_ = cc.Close()
		return nil, nil, nil, err
	}
	rm := remote{cl: cl}
	g := gate.New(pk, rm, rm, rm, gate.WithConfirmer(rm), gate.WithLogger(r.log))

	ctx, cancel := r.ctx(c)
	defer cancel()
	err = g.Unlock(ctx)
	// signature counters advance even when the server rejects the assertion
	if serr := saveAuthenticator(auth); serr != nil {
		r.log.Warn("keystore not saved", zap.Error(serr))
	}
	if err != nil {
		_ = cc.Close()
		return nil, nil, nil, err
	}
	return g, cc, cl, nil
}

func (r *runtime) unlock(c *cli.Context) error {
	g, cc, _, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	fmt.Fprintf(c.App.Writer, "unlocked (%s)\n", g.Method())
	return r.listDocs(c, g)
}

func (r *runtime) docsList(c *cli.Context) error {
	g, cc, _, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	return r.listDocs(c, g)
}

func (r *runtime) listDocs(c *cli.Context, g *gate.Gate) error {
	ctx, cancel := r.ctx(c)
	defer cancel()

	docs, err := g.Documents(ctx)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(docs) == 0 {
		fmt.Fprintln(w, "no documents")
		return nil
	}
	for _, d := range docs {
		mark := ""
		if d.Verified {
			mark = " (verified)"
		}
		fmt.Fprintf(w, "%s  %-28s %-24s %8d  %s%s\n", d.ID, d.Category.Label(), d.FileName, d.Size,
			d.UploadedAt.Local().Format("2006-01-02 15:04"), mark)
	}
	return nil
}

func (r *runtime) docsUpload(c *cli.Context) error {
	cat, err := model.ParseCategory(c.String("category"))
	if err != nil {
		return fmt.Errorf("%w: category %q", errs.ErrValidation, c.String("category"))
	}
	path := c.String("file")
	data, err := readAll(path, c.App.Reader)
	if err != nil {
		return err
	}
	name := c.String("name")
	if name == "" {
		name = fileName(path)
	}

	g, cc, _, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	d, err := g.Upload(ctx, cat, name, c.String("type"), data)
	if err != nil {
		return err
	}
	printJSON(c.App.Writer, convert.ToDocument(*d))
	return nil
}

func (r *runtime) docsGet(c *cli.Context) error {
	id, err := convert.ParseID(c.String("id"), "document id")
	if err != nil {
		return err
	}
	_, cc, cl, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.GetDocument(ctx, &api.DocumentRequest{ID: id.String()})
	if err != nil {
		return fromStatus(err)
	}
	return writeOut(c, res.Data)
}

func (r *runtime) docsDelete(c *cli.Context) error {
	id, err := convert.ParseID(c.String("id"), "document id")
	if err != nil {
		return err
	}
	g, cc, _, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	if err := g.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func (r *runtime) docsChecklist(c *cli.Context) error {
	_, cc, cl, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.Checklist(ctx)
	if err != nil {
		return fromStatus(err)
	}
	w := c.App.Writer
	for _, it := range res.Items {
		box := "[ ]"
		if it.Uploaded {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %s\n", box, it.Label)
	}
	fmt.Fprintf(w, "%d/%d uploaded (%d%%)\n", res.Uploaded, res.Required, res.Percent)
	return nil
}

func (r *runtime) docsLog(c *cli.Context) error {
	_, cc, cl, err := r.openVault(c)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.AccessLog(ctx, &api.AccessLogRequest{Limit: c.Int("limit")})
	if err != nil {
		return fromStatus(err)
	}
	printJSON(c.App.Writer, res.Entries)
	return nil
}

// ---- caseworker ----

func (r *runtime) ngoLogin(c *cli.Context) error {
	pw, err := password(c)
	if err != nil {
		return err
	}
	cc, cl, _, err := r.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.CaseworkerLogin(ctx, &api.CaseworkerLoginRequest{Email: c.String("email"), Password: pw})
	if err != nil {
		return fromStatus(err)
	}
	tf := tokenFile{AccessToken: res.AccessToken, ExpiresAt: res.ExpiresAt, Subject: res.SessionID, Label: res.Organization}
	if err := saveToken(caseworkerToken, tf); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s (%s) signed in until %s\n", res.Name, res.Organization, res.ExpiresAt.Local().Format(time.RFC822))
	return nil
}

func (r *runtime) ngoLogout(c *cli.Context) error {
	cc, cl, _, err := r.connect(caseworkerToken)
	if errors.Is(err, errLoginRequired) {
		return nil
	}
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	if err := cl.CaseworkerLogout(ctx); err != nil && !errors.Is(fromStatus(err), errs.ErrUnauthorized) {
		return fromStatus(err)
	}
	return dropToken(caseworkerToken)
}

func (r *runtime) ngoLookup(c *cli.Context) error {
	cc, cl, _, err := r.connect(caseworkerToken)
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.LookupBeneficiary(ctx, &api.LookupRequest{SharedID: c.String("shared-id"), Secret: c.String("secret")})
	if err != nil {
		return fromStatus(err)
	}
	printJSON(c.App.Writer, res)
	return nil
}

func (r *runtime) ngoOpen(access model.AccessType) cli.ActionFunc {
	return func(c *cli.Context) error {
		cc, cl, _, err := r.connect(caseworkerToken)
		if err != nil {
			return err
		}
		defer cc.Close()
		ctx, cancel := r.ctx(c)
		defer cancel()

		res, err := cl.OpenDocument(ctx, &api.OpenDocumentRequest{
			BeneficiaryID: c.String("beneficiary"),
			DocumentID:    c.String("id"),
			AccessType:    string(access),
		})
		if err != nil {
			return fromStatus(err)
		}
		if access == model.AccessDownload {
			fmt.Fprintln(c.App.Writer, res.URL)
			if res.ExpiresAt != nil {
				fmt.Fprintf(c.App.Writer, "expires %s\n", res.ExpiresAt.Local().Format(time.RFC822))
			}
			return nil
		}
		return writeOut(c, res.Data)
	}
}

// ---- eligibility ----

func answers(c *cli.Context) eligibility.Answers {
	a := eligibility.Answers{
		Role:           eligibility.RoleSelf,
		Vision:         c.Bool("vision"),
		Locomotor:      c.Bool("locomotor"),
		AcidAttack:     c.Bool("acid-attack"),
		Hearing:        c.Bool("hearing"),
		MentalNeuro:    c.Bool("mental-neuro"),
		SpeechLanguage: c.Bool("speech-language"),
		ChronicBlood:   c.Bool("chronic-blood"),
		ChronicNeuro:   c.Bool("chronic-neuro"),
		Severity40:     c.Bool("severity-40"),
		Severity80:     c.Bool("severity-80"),
	}
	if c.Bool("caregiver") {
		a.Role = eligibility.RoleCaregiver
	}
	return a
}

func (r *runtime) eligibility(c *cli.Context) error {
	a := answers(c)
	if c.Bool("offline") {
		printJSON(c.App.Writer, eligibility.Evaluate(a))
		return nil
	}
	cc, cl, _, err := r.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	ctx, cancel := r.ctx(c)
	defer cancel()

	res, err := cl.CheckEligibility(ctx, &a)
	if err != nil {
		return fromStatus(err)
	}
	printJSON(c.App.Writer, res)
	return nil
}

// ---- helpers ----

// password returns the --password value or the first line of stdin.
func password(c *cli.Context) (string, error) {
	if pw := c.String(flagPassword.Name); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("%w: password is required", errs.ErrValidation)
	}
	return pw, nil
}

func readAll(p string, stdin io.Reader) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func fileName(p string) string {
	if p == "-" {
		return "upload"
	}
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func writeOut(c *cli.Context, data []byte) error {
	if p := c.String(flagOut.Name); p != "" {
		return os.WriteFile(p, data, 0o600)
	}
	_, err := c.App.Writer.Write(data)
	return err
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// describeErr renders command failures for a terminal.
func describeErr(err error) string {
	switch {
	case errors.Is(err, errLoginRequired):
		return "login required: run `just-ease login` (or `just-ease ngo login`)"
	case errors.Is(err, errs.ErrUserCancelled):
		return "verification cancelled"
	case errors.Is(err, errs.ErrUnsupportedEnvironment):
		return "this device has no passkey support; use password sign-in"
	}
	if st, ok := status.FromError(err); ok {
		return fmt.Sprintf("rpc error: code=%s msg=%s", st.Code(), st.Message())
	}
	return "error: " + err.Error()
}
