// Package imap adapts a live IMAP account to the mailbox reader capability:
// the account's mailbox list becomes the folder tree and fetched messages are
// served through the same accessors as archived containers.
package imap

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/mbox"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool

	// Name overrides the container name; defaults to the username.
	Name string
}

// Dial connects and logs in, returning the account as a container.
func Dial(opts Options, logger *slog.Logger) (mailbox.Container, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	options := &imapclient.Options{}

	var (
		client *imapclient.Client
		err    error
	)
	if opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if logger != nil {
		logger.Debug("imap connection established", "address", address, "user", opts.Username, "tls", opts.UseTLS)
	}

	name := opts.Name
	if name == "" {
		name = opts.Username
	}

	return &Container{name: name, client: client, logger: logger}, nil
}

type Container struct {
	name   string
	client *imapclient.Client
	logger *slog.Logger
}

func (c *Container) Name() string {
	return c.name
}

// Root lists every mailbox on the account and assembles them into a folder
// tree keyed by the server's hierarchy delimiter. The root itself is
// synthetic and holds no messages.
func (c *Container) Root() (mailbox.Folder, error) {
	mailboxes, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}

	sort.Slice(mailboxes, func(i, j int) bool {
		return mailboxes[i].Mailbox < mailboxes[j].Mailbox
	})

	root := &Folder{container: c}
	nodes := map[string]*Folder{"": root}

	for _, m := range mailboxes {
		delim := "/"
		if m.Delim != 0 {
			delim = string(m.Delim)
		}

		segments := strings.Split(m.Mailbox, delim)
		path := ""
		parent := root
		for _, segment := range segments {
			if path == "" {
				path = segment
			} else {
				path = path + delim + segment
			}
			node, ok := nodes[path]
			if !ok {
				node = &Folder{container: c, display: segment}
				nodes[path] = node
				parent.children = append(parent.children, node)
			}
			parent = node
		}
		// Only the listed mailbox itself is selectable; intermediate
		// nodes created above stay message-less.
		parent.selectable = true
		parent.mailbox = m.Mailbox
	}

	return root, nil
}

func (c *Container) Close() error {
	if err := c.client.Logout().Wait(); err != nil {
		if c.logger != nil {
			c.logger.Warn("imap logout failed", "err", err)
		}
	}
	return c.client.Close()
}

type Folder struct {
	container  *Container
	mailbox    string
	display    string
	selectable bool
	children   []*Folder
}

func (f *Folder) DisplayName() string {
	return f.display
}

func (f *Folder) SubFolderEntries() ([]mailbox.EntryID, error) {
	ids := make([]mailbox.EntryID, len(f.children))
	for i := range f.children {
		ids[i] = mailbox.EntryID(i)
	}
	return ids, nil
}

func (f *Folder) SubFolder(id mailbox.EntryID) (mailbox.Folder, error) {
	if int(id) >= len(f.children) {
		return nil, fmt.Errorf("no subfolder entry %d", id)
	}
	return f.children[id], nil
}

// MessageEntries selects the mailbox read-only and exposes its messages as
// sequence numbers 1..N.
func (f *Folder) MessageEntries() ([]mailbox.EntryID, error) {
	if !f.selectable {
		return nil, nil
	}

	sel, err := f.container.client.Select(f.mailbox, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", f.mailbox, err)
	}

	ids := make([]mailbox.EntryID, 0, sel.NumMessages)
	for seq := uint32(1); seq <= sel.NumMessages; seq++ {
		ids = append(ids, mailbox.EntryID(seq))
	}
	return ids, nil
}

// Message fetches one message body by sequence number. The raw RFC 5322
// bytes are served through the mbox message accessors, which parse the same
// wire format.
func (f *Folder) Message(id mailbox.EntryID) (mailbox.Message, error) {
	seqSet := imapv2.SeqSetNum(uint32(id))
	section := &imapv2.FetchItemBodySection{}
	fetchOptions := &imapv2.FetchOptions{BodySection: []*imapv2.FetchItemBodySection{section}}

	msgs, err := f.container.client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch message %d in %s: %w", id, f.mailbox, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	raw := msgs[0].FindBodySection(section)
	if len(raw) == 0 {
		return nil, fmt.Errorf("message %d in %s has no body section", id, f.mailbox)
	}
	return mbox.NewMessage(raw), nil
}
