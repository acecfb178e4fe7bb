package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
)

const (
	ManifestFile = "manifest.json"
	IdMapFile    = "id_map.json"
	FlatFile     = "index.bin"
	AnnoyFile    = "index.ann"
	currentFile  = "CURRENT"
)

// Manifest описывает опубликованную сборку индекса.
type Manifest struct {
	BuildID      string    `json:"build_id"`
	Kind         string    `json:"kind"`
	Dimension    int       `json:"dimension"`
	Size         int       `json:"size"`
	ModelVersion string    `json:"model_version"`
	IndexFile    string    `json:"index_file"`
	IndexSHA256  string    `json:"index_sha256"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewManifest описывает только что собранный индекс.
func NewManifest(idx Index, ids *IdMap, modelVersion string) Manifest {
	return Manifest{
		BuildID:      uuid.NewString(),
		Kind:         idx.Kind(),
		Dimension:    idx.Dimension(),
		Size:         ids.Len(),
		ModelVersion: modelVersion,
		IndexFile:    indexFileName(idx.Kind()),
		CreatedAt:    time.Now().UTC(),
	}
}

// Files — имена файлов сборки внутри её каталога.
func (m Manifest) Files() []string {
	return FilesFor(m.Kind)
}

// FilesFor — файлы сборки индекса вида kind; manifest.json последним.
func FilesFor(kind string) []string {
	return []string{indexFileName(kind), IdMapFile, ManifestFile}
}

func indexFileName(kind string) string {
	if kind == KindFlat {
		return FlatFile
	}
	return AnnoyFile
}

// Artifacts — локальный каталог сборок: <root>/<build_id>/ и файл CURRENT
// с идентификатором актуальной сборки.
type Artifacts struct {
	root string
}

func NewArtifacts(root string) *Artifacts {
	return &Artifacts{root: root}
}

func (a *Artifacts) Root() string { return a.root }

// Dir — каталог сборки buildID.
func (a *Artifacts) Dir(buildID string) string {
	return filepath.Join(a.root, buildID)
}

// Write сохраняет индекс, карту ординалов и манифест и записывает в m
// контрольную сумму файла индекса. CURRENT не меняется:
// сборка становится актуальной только после SetCurrent.
func (a *Artifacts) Write(idx Index, ids *IdMap, m *Manifest) (string, error) {
	const op = "Artifacts.Write"

	if idx.Len() != ids.Len() || m.Size != ids.Len() {
		return "", e.Wrap(op, fmt.Errorf("%w: index %d, id map %d, manifest %d", e.ErrIndexCorrupt, idx.Len(), ids.Len(), m.Size))
	}

	dir := a.Dir(m.BuildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", e.Wrap(op, err)
	}

	indexPath := filepath.Join(dir, m.IndexFile)
	if err := idx.Save(indexPath); err != nil {
		return "", e.Wrap(op, err)
	}
	sum, err := fileSHA256(indexPath)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	m.IndexSHA256 = sum
	if err := ids.Save(filepath.Join(dir, IdMapFile)); err != nil {
		return "", e.Wrap(op, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", e.Wrap(op, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return "", e.Wrap(op, err)
	}

	return dir, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SetCurrent атомарно переключает CURRENT на buildID.
func (a *Artifacts) SetCurrent(buildID string) error {
	const op = "Artifacts.SetCurrent"

	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return e.Wrap(op, err)
	}

	tmp := filepath.Join(a.root, currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(buildID+"\n"), 0o644); err != nil {
		return e.Wrap(op, err)
	}
	if err := os.Rename(tmp, filepath.Join(a.root, currentFile)); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// Current возвращает идентификатор актуальной сборки.
// Если сборок ещё не было, возвращает e.ErrIndexNotLoaded.
func (a *Artifacts) Current() (string, error) {
	const op = "Artifacts.Current"

	data, err := os.ReadFile(filepath.Join(a.root, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", e.Wrap(op, e.ErrIndexNotLoaded)
	}
	if err != nil {
		return "", e.Wrap(op, err)
	}

	buildID := strings.TrimSpace(string(data))
	if buildID == "" {
		return "", e.Wrap(op, e.ErrIndexNotLoaded)
	}

	return buildID, nil
}

// ReadManifest читает manifest.json из каталога сборки.
func ReadManifest(dir string) (Manifest, error) {
	const op = "ReadManifest"

	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, e.Wrap(op, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, e.Wrap(op, fmt.Errorf("%w: manifest: %v", e.ErrIndexCorrupt, err))
	}

	return m, nil
}

// Load читает сборку из dir и проверяет, что файл индекса совпадает с манифестом
// по контрольной сумме, а размер индекса, длина карты ординалов и манифест
// согласованы. Любое расхождение — e.ErrIndexCorrupt.
func Load(dir string, searchK int) (Index, *IdMap, Manifest, error) {
	const op = "index.Load"

	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, m, e.Wrap(op, err)
	}
	if m.IndexFile == "" || filepath.Base(m.IndexFile) != m.IndexFile {
		return nil, nil, m, e.Wrap(op, fmt.Errorf("%w: bad index file %q", e.ErrIndexCorrupt, m.IndexFile))
	}

	ids, err := LoadIdMap(filepath.Join(dir, IdMapFile))
	if err != nil {
		return nil, nil, m, e.Wrap(op, err)
	}
	if ids.Len() != m.Size {
		return nil, nil, m, e.Wrap(op, fmt.Errorf("%w: id map %d, manifest %d", e.ErrIndexCorrupt, ids.Len(), m.Size))
	}

	path := filepath.Join(dir, m.IndexFile)
	sum, err := fileSHA256(path)
	if err != nil {
		return nil, nil, m, e.Wrap(op, err)
	}
	if m.IndexSHA256 == "" || sum != m.IndexSHA256 {
		return nil, nil, m, e.Wrap(op, fmt.Errorf("%w: %s checksum %s, manifest %q", e.ErrIndexCorrupt, m.IndexFile, sum, m.IndexSHA256))
	}

	var idx Index
	switch m.Kind {
	case KindFlat:
		idx, err = LoadFlat(path)
	case KindAnnoy:
		idx, err = LoadAnnoy(path, m.Dimension, m.Size, searchK)
	default:
		err = fmt.Errorf("%w: unknown index kind %q", e.ErrIndexCorrupt, m.Kind)
	}
	if err != nil {
		return nil, nil, m, e.Wrap(op, err)
	}

	if idx.Len() != ids.Len() || idx.Dimension() != m.Dimension {
		return nil, nil, m, e.Wrap(op, fmt.Errorf("%w: index %d×%d, id map %d, manifest %d×%d",
			e.ErrIndexCorrupt, idx.Len(), idx.Dimension(), ids.Len(), m.Size, m.Dimension))
	}

	return idx, ids, m, nil
}
