// Package idgen issues opaque, unique resource identifiers.
package idgen

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// ResourcePrefix prefixes every resource id ("res-<n>").
const ResourcePrefix = "res"

// Generator issues sonyflake-backed ids.
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

// DefaultGenerator returns the process-wide generator.
func DefaultGenerator() *Generator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = New()
	})
	return defaultGenerator
}

// New creates a generator. Sonyflake derives its machine id from the host's
// private IP; hosts without one fall back to the process id.
func New() *Generator {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sf := sonyflake.NewSonyflake(sonyflake.Settings{StartTime: start})
	if sf == nil {
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: start,
			MachineID: func() (uint16, error) {
				return uint16(os.Getpid()), nil
			},
		})
	}
	return &Generator{sf: sf}
}

func (g *Generator) generateIDWithPrefix(prefix string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// ResourceID returns a new resource id.
func (g *Generator) ResourceID() (string, error) {
	return g.generateIDWithPrefix(ResourcePrefix)
}

// ResourceID returns a new resource id from the default generator.
func ResourceID() (string, error) {
	return DefaultGenerator().ResourceID()
}
