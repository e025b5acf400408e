package extract

import (
	"time"

	"github.com/vicluzy/pst-extract/mailbox"
)

// fakeMessage implements mailbox.Message for tests. Zero values mean "field
// absent"; err fields make the matching accessor fail.
type fakeMessage struct {
	subject    string
	subjectErr error

	body    string
	bodyErr error

	html    string
	htmlErr error

	date    time.Time
	dateErr error

	props    mailbox.PropertySet
	propsErr error

	recipients    []mailbox.PropertySet
	recipientsErr error

	attachments  []mailbox.PropertySet
	attCountErr  error
	attIndexErrs map[int]error
}

func (m *fakeMessage) Subject() (string, error) {
	return m.subject, m.subjectErr
}

func (m *fakeMessage) Body() (string, error) {
	return m.body, m.bodyErr
}

func (m *fakeMessage) BodyHTML() (string, error) {
	return m.html, m.htmlErr
}

func (m *fakeMessage) DeliveryTime() (time.Time, error) {
	return m.date, m.dateErr
}

func (m *fakeMessage) Properties() (mailbox.PropertySet, error) {
	if m.propsErr != nil {
		return nil, m.propsErr
	}
	if m.props == nil {
		return mailbox.PropertySet{}, nil
	}
	return m.props, nil
}

func (m *fakeMessage) Recipients() ([]mailbox.PropertySet, error) {
	return m.recipients, m.recipientsErr
}

func (m *fakeMessage) AttachmentCount() (int, error) {
	if m.attCountErr != nil {
		return 0, m.attCountErr
	}
	return len(m.attachments), nil
}

func (m *fakeMessage) Attachment(index int) (mailbox.PropertySet, error) {
	if err := m.attIndexErrs[index]; err != nil {
		return nil, err
	}
	return m.attachments[index], nil
}

// fakeFolder implements mailbox.Folder over an in-memory tree.
type fakeFolder struct {
	name string

	subs    []*fakeFolder
	subsErr error          // SubFolderEntries failure
	badSubs map[int]error  // SubFolder failures by index

	messages []*fakeMessage
	msgsErr  error
	badMsgs  map[int]error
	nilMsgs  map[int]bool
}

func (f *fakeFolder) DisplayName() string {
	return f.name
}

func (f *fakeFolder) SubFolderEntries() ([]mailbox.EntryID, error) {
	if f.subsErr != nil {
		return nil, f.subsErr
	}
	ids := make([]mailbox.EntryID, len(f.subs))
	for i := range f.subs {
		ids[i] = mailbox.EntryID(i)
	}
	return ids, nil
}

func (f *fakeFolder) SubFolder(id mailbox.EntryID) (mailbox.Folder, error) {
	if err := f.badSubs[int(id)]; err != nil {
		return nil, err
	}
	return f.subs[id], nil
}

func (f *fakeFolder) MessageEntries() ([]mailbox.EntryID, error) {
	if f.msgsErr != nil {
		return nil, f.msgsErr
	}
	ids := make([]mailbox.EntryID, len(f.messages))
	for i := range f.messages {
		ids[i] = mailbox.EntryID(i)
	}
	return ids, nil
}

func (f *fakeFolder) Message(id mailbox.EntryID) (mailbox.Message, error) {
	if err := f.badMsgs[int(id)]; err != nil {
		return nil, err
	}
	if f.nilMsgs[int(id)] {
		return nil, nil
	}
	return f.messages[id], nil
}

// fakeContainer implements mailbox.Container around a root folder.
type fakeContainer struct {
	name    string
	root    *fakeFolder
	rootErr error
}

func (c *fakeContainer) Name() string {
	return c.name
}

func (c *fakeContainer) Root() (mailbox.Folder, error) {
	if c.rootErr != nil {
		return nil, c.rootErr
	}
	return c.root, nil
}

func (c *fakeContainer) Close() error {
	return nil
}
