// Package ipc implements the per-phase READ/WRITE mailbox documents
// phases use to leave advisory hints for each other. Each document is
// free-form markdown with a small YAML-style structured header, parsed
// with github.com/adrg/frontmatter.
package ipc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Header is the structured portion of a mailbox document. The mailbox
// is advisory only: PhaseRunner/PhaseCoordinator must still validate
// anything it acts on, never trusting Header blindly.
type Header struct {
	NextPhase string   `yaml:"nextPhase,omitempty"`
	Files     []string `yaml:"files,omitempty"`
	Reason    string   `yaml:"reason,omitempty"`
}

// Document is one parsed mailbox file: its structured header plus the
// free-form markdown body that follows it.
type Document struct {
	Header Header
	Body   string
}

// Mailboxes locates and reads/writes the READ_<phase>/WRITE_<phase>
// document pair for every phase under a project's mailboxes directory.
type Mailboxes struct {
	dir string
}

// New returns a Mailboxes rooted at dir (conventionally
// <project>/.orchestrator/mailboxes). dir is created if missing.
func New(dir string) (*Mailboxes, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ipc: creating mailboxes dir %s: %w", dir, err)
	}
	return &Mailboxes{dir: dir}, nil
}

func (m *Mailboxes) readPath(phase string) string  { return filepath.Join(m.dir, "READ_"+phase+".md") }
func (m *Mailboxes) writePath(phase string) string { return filepath.Join(m.dir, "WRITE_"+phase+".md") }

// ReadRead reads phase's READ_<phase> mailbox: the aggregate of every
// other phase's WRITE document, as assembled by Mailboxes.Distribute.
// A missing file is not an error; it returns an empty Document.
func (m *Mailboxes) ReadRead(phase string) (Document, error) {
	return readDocument(m.readPath(phase))
}

// ReadWrite reads phase's own WRITE_<phase> mailbox (what it last wrote).
func (m *Mailboxes) ReadWrite(phase string) (Document, error) {
	return readDocument(m.writePath(phase))
}

// WriteWrite persists phase's WRITE_<phase> mailbox body.
func (m *Mailboxes) WriteWrite(phase string, doc Document) error {
	return writeDocument(m.writePath(phase), doc)
}

// WriteRead persists phase's READ_<phase> mailbox body (called by
// Distribute, never by the phase itself).
func (m *Mailboxes) WriteRead(phase string, doc Document) error {
	return writeDocument(m.readPath(phase), doc)
}

// Distribute rebuilds every phase's READ mailbox from the union of all
// other phases' current WRITE mailboxes, called by the coordinator
// between phase runs: each phase writes only its own WRITE mailbox, and
// every other phase reads the merged result from its READ mailbox at the
// start of its next run. phases lists every known phase name.
func (m *Mailboxes) Distribute(phases []string) error {
	writes := make(map[string]Document, len(phases))
	for _, p := range phases {
		doc, err := m.ReadWrite(p)
		if err != nil {
			return err
		}
		writes[p] = doc
	}

	for _, reader := range phases {
		var bodies []string
		var files []string
		var nextPhase string
		ordered := append([]string(nil), phases...)
		sort.Strings(ordered)
		for _, writer := range ordered {
			if writer == reader {
				continue
			}
			doc := writes[writer]
			if doc.Body == "" && doc.Header.NextPhase == "" && len(doc.Header.Files) == 0 {
				continue
			}
			bodies = append(bodies, fmt.Sprintf("### from %s\n\n%s", writer, doc.Body))
			files = append(files, doc.Header.Files...)
			if doc.Header.NextPhase != "" {
				nextPhase = doc.Header.NextPhase
			}
		}
		agg := Document{
			Header: Header{NextPhase: nextPhase, Files: files},
		}
		for i, b := range bodies {
			if i > 0 {
				agg.Body += "\n\n"
			}
			agg.Body += b
		}
		if err := m.WriteRead(reader, agg); err != nil {
			return err
		}
	}
	return nil
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("ipc: reading %s: %w", path, err)
	}
	var header Header
	rest, err := frontmatter.Parse(bytes.NewReader(data), &header)
	if err != nil {
		return Document{}, fmt.Errorf("ipc: parsing frontmatter in %s: %w", path, err)
	}
	return Document{Header: header, Body: string(bytes.TrimSpace(rest))}, nil
}

func writeDocument(path string, doc Document) error {
	var buf bytes.Buffer
	headerBytes, err := yaml.Marshal(doc.Header)
	if err != nil {
		return fmt.Errorf("ipc: marshalling header for %s: %w", path, err)
	}
	if bytes.TrimSpace(headerBytes) != nil && string(bytes.TrimSpace(headerBytes)) != "{}" {
		buf.WriteString("---\n")
		buf.Write(headerBytes)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(doc.Body)
	buf.WriteString("\n")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ipc: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ipc: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
