package pathmap

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/types"
)

// Mapper translates live container paths into stable logical paths rooted at
// a volume name. It is pure path arithmetic; no filesystem access.
type Mapper struct {
	volumes []types.Volume
	logger  zerolog.Logger
}

// New creates a mapper over the configured volumes.
func New(volumes []types.Volume) *Mapper {
	return &Mapper{
		volumes: volumes,
		logger:  log.WithComponent("pathmap"),
	}
}

// Volumes returns the configured volumes in order.
func (m *Mapper) Volumes() []types.Volume {
	return m.volumes
}

// Logical maps a container path to its logical path. The first volume whose
// root contains the path wins. Paths outside every volume are returned
// unchanged with a warning; they still flow through the pipeline so nothing
// is silently lost.
func (m *Mapper) Logical(containerPath string) string {
	cleaned := filepath.Clean(containerPath)
	for _, v := range m.volumes {
		root := filepath.Clean(v.Root)
		rel, err := filepath.Rel(root, cleaned)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		if rel == "." {
			return "/" + v.Name
		}
		return "/" + v.Name + "/" + filepath.ToSlash(rel)
	}
	m.logger.Warn().Str("path", containerPath).Msg("path outside all configured volumes")
	return containerPath
}

// Depth returns the directory depth of a logical path: the number of path
// segments below the volume root. "/photos/a/b.jpg" has depth 1.
func Depth(logicalPath string) int {
	segments := 0
	for _, p := range strings.Split(logicalPath, "/") {
		if p != "" {
			segments++
		}
	}
	d := segments - 2
	if d < 0 {
		return 0
	}
	return d
}

// VolumesFromMounts builds volumes from a list of container paths. The
// volume name is the last path segment of each mount.
func VolumesFromMounts(mounts []string) []types.Volume {
	volumes := make([]types.Volume, 0, len(mounts))
	for _, m := range mounts {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		volumes = append(volumes, types.Volume{
			Name: filepath.Base(filepath.Clean(m)),
			Root: filepath.Clean(m),
		})
	}
	return volumes
}
