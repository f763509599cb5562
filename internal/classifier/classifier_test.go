package classifier

import (
	"math/rand/v2"
	"net"
	"strings"
	"testing"

	"attackwatch/internal/attacks"
)

func TestClassifyBounds(t *testing.T) {
	m, err := New(PoolFull, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatal(err)
	}
	labels := map[int]bool{}
	for i := 0; i < 2000; i++ {
		e := m.Classify("192.168.1.1", "10.0.0.1")
		if e.Confidence < minConfidence || e.Confidence > maxConfidence {
			t.Fatalf("confidence %v out of range", e.Confidence)
		}
		if want := attacks.DeriveRisk(e.PredictedLabel, e.Confidence); e.RiskLevel != want {
			t.Fatalf("risk = %s, want %s for label %d conf %v", e.RiskLevel, want, e.PredictedLabel, e.Confidence)
		}
		if e.PredictedLabel == attacks.LabelBenign && e.RiskLevel != attacks.RiskLow {
			t.Fatalf("benign flow rated %s", e.RiskLevel)
		}
		if e.Status != attacks.StatusNew || e.SrcIP != "192.168.1.1" || e.DstIP != "10.0.0.1" {
			t.Fatalf("event = %+v", e)
		}
		labels[e.PredictedLabel] = true
	}
	if len(labels) < 2 {
		t.Errorf("full pool produced labels %v", labels)
	}
}

func TestSinglePoolIsBenign(t *testing.T) {
	m, err := New(PoolSingle, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if m.PoolSize() != 1 {
		t.Fatalf("pool size = %d", m.PoolSize())
	}
	for i := 0; i < 100; i++ {
		e := m.Classify("a", "b")
		if e.PredictedLabel != attacks.LabelBenign || e.RiskLevel != attacks.RiskLow || e.DstPort != 3389 {
			t.Fatalf("event = %+v", e)
		}
	}
}

func TestClassifyCopiesFlow(t *testing.T) {
	m, _ := New(PoolSingle, rand.New(rand.NewPCG(5, 6)))
	a := m.Classify("a", "b")
	a.Flow["flowDuration"] = -1
	if b := m.Classify("a", "b"); b.Flow["flowDuration"] == -1 {
		t.Error("Classify shares the sample's flow map")
	}
}

func TestRandomEndpoints(t *testing.T) {
	m, _ := New("", rand.New(rand.NewPCG(7, 8)))
	for i := 0; i < 200; i++ {
		src, dst := m.RandomEndpoints()
		if net.ParseIP(src) == nil || !strings.HasPrefix(src, "192.168.") {
			t.Fatalf("src = %q", src)
		}
		if net.ParseIP(dst) == nil || !strings.HasPrefix(dst, "10.0.") {
			t.Fatalf("dst = %q", dst)
		}
	}
}

func TestUnknownPool(t *testing.T) {
	if _, err := New("huge", nil); err == nil {
		t.Error("New(huge) succeeded")
	}
}
