// Package classifier is a stand-in for the traffic classification model. It
// draws a recorded flow from a fixed sample pool and attaches a random
// confidence score.
package classifier

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"attackwatch/internal/attacks"
)

// Pool names accepted by New.
const (
	PoolFull   = "full"
	PoolSingle = "single"
)

const (
	minConfidence = 0.70
	maxConfidence = 0.95
)

// Sample is one recorded flow and the label the model assigned to it.
type Sample struct {
	Label    int
	DstPort  int
	Protocol int
	Flow     map[string]float64
}

// Mock picks samples uniformly at random. It is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	rng     *rand.Rand
	samples []Sample
}

// New returns a Mock over the named sample pool. A nil rng seeds from the
// runtime's random source.
func New(pool string, rng *rand.Rand) (*Mock, error) {
	var samples []Sample
	switch pool {
	case "", PoolFull:
		samples = fullPool
	case PoolSingle:
		samples = fullPool[:1]
	default:
		return nil, fmt.Errorf("classifier: unknown sample pool %q", pool)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Mock{rng: rng, samples: samples}, nil
}

// Classify returns an unsaved event for a flow between srcIP and dstIP.
// Confidence is uniform in [0.70, 0.95] and the risk level follows from the
// label and confidence.
func (m *Mock) Classify(srcIP, dstIP string) *attacks.AttackEvent {
	m.mu.Lock()
	s := m.samples[m.rng.IntN(len(m.samples))]
	confidence := minConfidence + m.rng.Float64()*(maxConfidence-minConfidence)
	m.mu.Unlock()

	flow := make(map[string]float64, len(s.Flow))
	for k, v := range s.Flow {
		flow[k] = v
	}
	return &attacks.AttackEvent{
		PredictedLabel: s.Label,
		Confidence:     confidence,
		RiskLevel:      attacks.DeriveRisk(s.Label, confidence),
		SrcIP:          srcIP,
		DstIP:          dstIP,
		DstPort:        s.DstPort,
		Protocol:       s.Protocol,
		Flow:           flow,
		Status:         attacks.StatusNew,
	}
}

// RandomEndpoints returns a source address in 192.168.0.0/16 and a
// destination in 10.0.0.0/16.
func (m *Mock) RandomEndpoints() (src, dst string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src = fmt.Sprintf("192.168.%d.%d", m.rng.IntN(255), m.rng.IntN(255))
	dst = fmt.Sprintf("10.0.%d.%d", m.rng.IntN(255), m.rng.IntN(255))
	return src, dst
}

// PoolSize reports how many samples the mock draws from.
func (m *Mock) PoolSize() int {
	return len(m.samples)
}
