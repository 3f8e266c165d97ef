package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/identity"
	"github.com/spachava753/stayconnected/people"
)

const (
	// DefaultIMAPAddress is the IMAP server used when none is configured.
	DefaultIMAPAddress = "imap.gmail.com:993"
	// DefaultSMTPAddress is the SMTP server used when none is configured.
	DefaultSMTPAddress = "smtp.gmail.com:465"
	// DefaultMailbox is scanned for correspondents. Gmail's All Mail holds
	// both received and sent messages.
	DefaultMailbox = "[Gmail]/All Mail"

	// EnvAddress names the env var holding the account address.
	EnvAddress = "STAYCONNECTED_MAIL_ADDRESS"
	// EnvPassword names the env var holding the account app password.
	EnvPassword = "STAYCONNECTED_MAIL_PASSWORD"

	ioTimeout = 30 * time.Second
)

// Credentials is a mail account login.
type Credentials struct {
	Address  string
	Password string
}

// LoadCredentials reads credentials from EnvAddress and EnvPassword. Spaces
// in app passwords are dropped.
func LoadCredentials() (Credentials, error) {
	address := strings.TrimSpace(os.Getenv(EnvAddress))
	if address == "" {
		return Credentials{}, fmt.Errorf("mail: %s is required", EnvAddress)
	}
	password := strings.ReplaceAll(os.Getenv(EnvPassword), " ", "")
	if password == "" {
		return Credentials{}, fmt.Errorf("mail: %s is required", EnvPassword)
	}
	return Credentials{Address: address, Password: password}, nil
}

// Config selects the mail servers.
type Config struct {
	IMAPAddress string
	SMTPAddress string
	Mailbox     string
}

func (c Config) withDefaults() Config {
	if c.IMAPAddress == "" {
		c.IMAPAddress = DefaultIMAPAddress
	}
	if c.SMTPAddress == "" {
		c.SMTPAddress = DefaultSMTPAddress
	}
	if c.Mailbox == "" {
		c.Mailbox = DefaultMailbox
	}
	return c
}

// Option configures a Source or a Mailer.
type Option func(*options)

type options struct {
	log   *zap.Logger
	creds func() (Credentials, error)
	now   func() time.Time
}

func newOptions(opts []Option) options {
	o := options{log: zap.NewNop(), creds: LoadCredentials, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCredentials uses fixed credentials instead of the environment.
func WithCredentials(c Credentials) Option {
	return func(o *options) {
		o.creds = func() (Credentials, error) { return c, nil }
	}
}

// WithClock sets the time source used for message dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Source finds people the user exchanges email with. It implements
// people.Source.
type Source struct {
	cfg Config
	options
}

// NewSource returns a Source for cfg.
func NewSource(cfg Config, opts ...Option) *Source {
	return &Source{cfg: cfg.withDefaults(), options: newOptions(opts)}
}

// RequestAccess logs in once. Missing or rejected credentials return an
// error matching people.ErrPermissionDenied.
func (s *Source) RequestAccess(ctx context.Context) error {
	c, _, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return c.Logout()
}

// Fetch scans the newest messages of the mailbox and returns up to limit
// correspondents as drafts, most frequent first.
func (s *Source) Fetch(ctx context.Context, limit int) ([]people.Draft, error) {
	if limit <= 0 {
		limit = 50
	}
	c, creds, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	status, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("mail: selecting %q failed: %w", s.cfg.Mailbox, err)
	}
	if status.Messages == 0 {
		return []people.Draft{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scan := uint32(max(limit*10, 200))
	from := uint32(1)
	if status.Messages > scan {
		from = status.Messages - scan + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, status.Messages)

	messages := make(chan *imap.Message, 64)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	envelopes := make([]*imap.Envelope, 0, scan)
	for msg := range messages {
		envelopes = append(envelopes, msg.Envelope)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("mail: fetching envelopes failed: %w", err)
	}

	drafts := correspondents(creds.Address, envelopes, limit)
	s.log.Debug("fetched correspondents", zap.Int("scanned", len(envelopes)), zap.Int("count", len(drafts)))
	return drafts, nil
}

func (s *Source) connect(ctx context.Context) (*client.Client, Credentials, error) {
	creds, err := s.creds()
	if err != nil {
		return nil, Credentials{}, &people.Error{Code: people.ErrorCodePermissionDenied, Message: "mail credentials missing", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, Credentials{}, err
	}

	host, _, _ := net.SplitHostPort(s.cfg.IMAPAddress)
	dialer := &net.Dialer{Timeout: ioTimeout}
	c, err := client.DialWithDialerTLS(dialer, s.cfg.IMAPAddress, &tls.Config{ServerName: host})
	if err != nil {
		return nil, Credentials{}, fmt.Errorf("mail: IMAP dial failed: %w", err)
	}
	c.Timeout = ioTimeout

	if err := c.Login(creds.Address, creds.Password); err != nil {
		c.Logout()
		return nil, Credentials{}, &people.Error{Code: people.ErrorCodePermissionDenied, Message: "IMAP login rejected", Err: err}
	}
	return c, creds, nil
}

type tally struct {
	name  string
	email string
	count int
	last  time.Time
}

// correspondents counts every From, To and Cc address other than self and
// returns the top limit as drafts. The most recent non-empty display name
// wins.
func correspondents(self string, envelopes []*imap.Envelope, limit int) []people.Draft {
	self = identity.NormalizeEmail(self)
	byEmail := map[string]*tally{}
	for _, env := range envelopes {
		if env == nil {
			continue
		}
		addrs := make([]*imap.Address, 0, len(env.From)+len(env.To)+len(env.Cc))
		addrs = append(addrs, env.From...)
		addrs = append(addrs, env.To...)
		addrs = append(addrs, env.Cc...)
		for _, addr := range addrs {
			if addr == nil {
				continue
			}
			email := identity.NormalizeEmail(addr.Address())
			if email == "" || email == self || !strings.Contains(email, "@") || isAutomated(email) {
				continue
			}
			t, ok := byEmail[email]
			if !ok {
				t = &tally{email: email}
				byEmail[email] = t
			}
			t.count++
			name := strings.TrimSpace(addr.PersonalName)
			if name != "" && !env.Date.Before(t.last) {
				t.name = name
			}
			if env.Date.After(t.last) {
				t.last = env.Date
			}
		}
	}

	list := make([]*tally, 0, len(byEmail))
	for _, t := range byEmail {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		if !list[i].last.Equal(list[j].last) {
			return list[i].last.After(list[j].last)
		}
		return list[i].email < list[j].email
	})
	if len(list) > limit {
		list = list[:limit]
	}

	drafts := make([]people.Draft, 0, len(list))
	for _, t := range list {
		drafts = append(drafts, people.Draft{SourceID: "mailto:" + t.email, Name: t.name, Email: t.email})
	}
	return drafts
}

var automatedPrefixes = []string{"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon", "notifications", "postmaster"}

func isAutomated(email string) bool {
	local, _, _ := strings.Cut(email, "@")
	for _, prefix := range automatedPrefixes {
		if strings.HasPrefix(local, prefix) {
			return true
		}
	}
	return false
}

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer sends email over SMTP with implicit TLS and PLAIN auth.
type Mailer struct {
	cfg Config
	options
	dial func(ctx context.Context, address string) (*smtp.Client, error)
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg Config, opts ...Option) *Mailer {
	return &Mailer{cfg: cfg.withDefaults(), options: newOptions(opts), dial: dialTLS}
}

func dialTLS(ctx context.Context, address string) (*smtp.Client, error) {
	host, _, _ := net.SplitHostPort(address)
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: ioTimeout}, Config: &tls.Config{ServerName: host}}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("mail: SMTP TLS dial failed: %w", err)
	}
	return smtp.NewClient(conn), nil
}

// Send delivers msg from the account address and returns its Message-ID.
func (m *Mailer) Send(ctx context.Context, msg Message) (string, error) {
	recipients := uniqueRecipients(msg.To)
	if len(recipients) == 0 {
		return "", errors.New("mail: at least one recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return "", errors.New("mail: body is required")
	}
	creds, err := m.creds()
	if err != nil {
		return "", err
	}

	now := m.now()
	messageID := generateMessageID(creds.Address, now)
	raw := buildMessage(creds.Address, recipients, msg.Subject, msg.Body, messageID, now)

	c, err := m.dial(ctx, m.cfg.SMTPAddress)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", creds.Address, creds.Password)); err != nil {
		return "", fmt.Errorf("mail: SMTP auth failed: %w", err)
	}
	if err := c.Mail(creds.Address, nil); err != nil {
		return "", fmt.Errorf("mail: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return "", fmt.Errorf("mail: RCPT TO %q failed: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("mail: DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return "", fmt.Errorf("mail: writing message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("mail: finalizing message failed: %w", err)
	}
	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("mail: QUIT failed: %w", err)
	}
	m.log.Info("sent mail", zap.Strings("to", recipients), zap.String("message_id", messageID))
	return messageID, nil
}

func uniqueRecipients(list []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(list))
	for _, recipient := range list {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if _, ok := seen[recipient]; ok {
			continue
		}
		seen[recipient] = struct{}{}
		out = append(out, recipient)
	}
	return out
}

func buildMessage(from string, to []string, subject string, body string, messageID string, now time.Time) []byte {
	subject = sanitizeHeader(subject)
	if subject == "" {
		subject = "(no subject)"
	}
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", now.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + normalizeBody(body) + "\r\n")
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return strings.TrimSpace(body)
}

func generateMessageID(address string, now time.Time) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%d.%s>", now.UnixNano(), domain)
}
