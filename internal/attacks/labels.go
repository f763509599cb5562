package attacks

import "strconv"

// LabelBenign is the classifier code for non-malicious traffic.
const LabelBenign = 1

var labelNames = map[int]string{
	1:  "Benign",
	2:  "Brute Force Web",
	3:  "FTP Brute Force",
	4:  "DDoS",
	5:  "BAT",
	6:  "SSN brute force",
	7:  "GoldenEye",
	8:  "GoldenEye",
	9:  "Slowloris",
	10: "Brute Force XSS",
	11: "SQL Injection",
}

var protocolNames = map[int]string{
	6:  "TCP",
	17: "UDP",
	10: "ICMP",
}

func LabelName(code int) string {
	if n, ok := labelNames[code]; ok {
		return n
	}
	return "Unknown (" + strconv.Itoa(code) + ")"
}

func ProtocolName(code int) string {
	if n, ok := protocolNames[code]; ok {
		return n
	}
	return strconv.Itoa(code)
}

// DeriveRisk maps a classification to a risk level: benign traffic is always
// Low; otherwise High above 0.90 confidence, Medium above 0.70.
func DeriveRisk(label int, confidence float64) RiskLevel {
	if label == LabelBenign {
		return RiskLow
	}
	switch {
	case confidence > 0.90:
		return RiskHigh
	case confidence > 0.70:
		return RiskMedium
	default:
		return RiskLow
	}
}
