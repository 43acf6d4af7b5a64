package vm

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"gocond/pkg/asm"
)

const (
	snapshotStateEntry   = "state.json"
	snapshotProgramEntry = "program.lst"
)

// snapshotState is the JSON form of the run state.
type snapshotState struct {
	RunID     string           `json:"run_id"`
	IP        int              `json:"ip"`
	Steps     int              `json:"steps"`
	Halted    bool             `json:"halted"`
	Error     string           `json:"error,omitempty"`
	Separator string           `json:"output_separator"`
	Stack     []Slot           `json:"stack"`
	Symbols   map[string]int64 `json:"symbols"`
}

// SnapshotToBytes serialises the program and the run state into an in-memory
// ZIP archive.
func (v *VM) SnapshotToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := snapshotState{
		RunID:     v.runID.String(),
		IP:        v.ip,
		Steps:     v.steps,
		Halted:    v.halted,
		Separator: v.separator,
		Stack:     v.Stack(),
		Symbols:   v.symbols.Map(),
	}
	if v.err != nil {
		if Resumable(v.err) {
			state.Halted = false
		} else {
			state.Error = v.err.Error()
		}
	}
	if state.Stack == nil {
		state.Stack = []Slot{}
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", snapshotStateEntry, err)
	}
	if err := writeZipEntry(zw, snapshotStateEntry, jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, snapshotProgramEntry, []byte(asm.Disassemble(v.prog))); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes rebuilds a VM from a snapshot archive. opts supply the
// host side (input, output, logger); the separator saved in the snapshot
// applies unless opts override it.
func RestoreFromBytes(data []byte, opts ...Option) (*VM, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, snapshotStateEntry)
	if err != nil {
		return nil, err
	}
	var state snapshotState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", snapshotStateEntry, err)
	}

	listing, err := readZipEntry(fileMap, snapshotProgramEntry)
	if err != nil {
		return nil, err
	}
	prog, err := asm.Assemble(string(listing))
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", snapshotProgramEntry, err)
	}

	if state.IP < 0 || state.IP > len(prog) {
		return nil, fmt.Errorf("restore: ip %d outside program of %d instructions", state.IP, len(prog))
	}
	runID, err := uuid.Parse(state.RunID)
	if err != nil {
		return nil, fmt.Errorf("restore run id: %w", err)
	}

	v := New(prog, append([]Option{WithSeparator(state.Separator)}, opts...)...)
	v.runID = runID
	v.ip = state.IP
	v.steps = state.Steps
	v.halted = state.Halted || state.IP >= len(prog)
	v.started = state.Steps > 0
	v.stack = append([]Slot(nil), state.Stack...)
	for name, val := range state.Symbols {
		v.symbols.Set(name, val)
	}
	if state.Error != "" {
		v.halted = true
		v.err = errors.New(state.Error)
	}
	return v, nil
}

// SnapshotToFile writes the snapshot archive to path.
func (v *VM) SnapshotToFile(path string) error {
	data, err := v.SnapshotToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from path.
func RestoreFromFile(path string, opts ...Option) (*VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return RestoreFromBytes(data, opts...)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
