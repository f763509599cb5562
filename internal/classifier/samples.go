package classifier

// fullPool holds recorded flows from the CSE-CIC-IDS2018 capture. The first
// entry is the benign RDP flow the single pool is restricted to.
var fullPool = []Sample{
	{
		Label: 1, DstPort: 3389, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 5206015, "totFwdPkts": 9, "totBwdPkts": 11,
			"totLenFwdPkts": 1213, "totLenBwdPkts": 1948, "fwdPktLenMax": 661,
			"fwdPktLenMean": 134.7777778, "bwdPktLenMean": 177.0909091, "bwdPktLenStd": 347.9371939,
			"flowBytsPerSec": 607.182269, "flowPktsPerSec": 3.841710022, "flowIATMean": 274000.7895,
			"flowIATStd": 487382.2997, "flowIATMax": 1906221, "fwdIATMean": 650751.9,
			"bwdIATStd": 591640.0074, "finFlagCnt": 0, "synFlagCnt": 0, "rstFlagCnt": 1,
			"ackFlagCnt": 0, "fwdSegSizeAvg": 134.77777, "initFwdWinByts": 8192, "initBwdWinByts": 62872,
		},
	},
	{
		Label: 2, DstPort: 80, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 5018401, "totFwdPkts": 4, "totBwdPkts": 4,
			"totLenFwdPkts": 960, "totLenBwdPkts": 1591, "fwdPktLenMax": 960,
			"fwdPktLenMean": 240, "bwdPktLenMean": 397.75, "bwdPktLenStd": 795.5,
			"flowBytsPerSec": 508.33, "flowPktsPerSec": 1.594, "flowIATMean": 716914.4,
			"flowIATStd": 1893401.2, "flowIATMax": 5010543, "fwdIATMean": 1672800.3,
			"bwdIATStd": 2890322.1, "finFlagCnt": 0, "synFlagCnt": 0, "rstFlagCnt": 0,
			"ackFlagCnt": 1, "fwdSegSizeAvg": 240, "initFwdWinByts": 8192, "initBwdWinByts": 211,
		},
	},
	{
		Label: 3, DstPort: 21, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 1, "totFwdPkts": 1, "totBwdPkts": 1,
			"totLenFwdPkts": 0, "totLenBwdPkts": 0, "fwdPktLenMax": 0,
			"flowBytsPerSec": 0, "flowPktsPerSec": 2000000, "flowIATMean": 1,
			"flowIATMax": 1, "rstFlagCnt": 1, "ackFlagCnt": 1,
			"initFwdWinByts": 26883, "initBwdWinByts": 0,
		},
	},
	{
		Label: 4, DstPort: 80, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 1479, "totFwdPkts": 2, "totBwdPkts": 0,
			"totLenFwdPkts": 0, "totLenBwdPkts": 0, "flowBytsPerSec": 0,
			"flowPktsPerSec": 1352.265, "flowIATMean": 1479, "flowIATMax": 1479,
			"fwdIATMean": 1479, "synFlagCnt": 0, "ackFlagCnt": 1,
			"initFwdWinByts": 225, "initBwdWinByts": -1,
		},
	},
	{
		Label: 7, DstPort: 80, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 11245890, "totFwdPkts": 5, "totBwdPkts": 3,
			"totLenFwdPkts": 353, "totLenBwdPkts": 0, "fwdPktLenMax": 353,
			"fwdPktLenMean": 70.6, "flowBytsPerSec": 31.39, "flowPktsPerSec": 0.711,
			"flowIATMean": 1606555.7, "flowIATStd": 2956110.4, "flowIATMax": 6510035,
			"finFlagCnt": 1, "ackFlagCnt": 0, "initFwdWinByts": 26883, "initBwdWinByts": 219,
		},
	},
	{
		Label: 9, DstPort: 80, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 98765432, "totFwdPkts": 12, "totBwdPkts": 2,
			"totLenFwdPkts": 264, "totLenBwdPkts": 0, "fwdPktLenMax": 22,
			"fwdPktLenMean": 22, "flowBytsPerSec": 2.673, "flowPktsPerSec": 0.1417,
			"flowIATMean": 7597341, "flowIATStd": 4114201, "flowIATMax": 10003442,
			"ackFlagCnt": 1, "initFwdWinByts": 29200, "initBwdWinByts": 28960,
		},
	},
	{
		Label: 11, DstPort: 80, Protocol: 6,
		Flow: map[string]float64{
			"flowDuration": 5009372, "totFwdPkts": 6, "totBwdPkts": 4,
			"totLenFwdPkts": 1410, "totLenBwdPkts": 2103, "fwdPktLenMax": 646,
			"fwdPktLenMean": 235, "bwdPktLenMean": 525.75, "bwdPktLenStd": 1051.5,
			"flowBytsPerSec": 701.286, "flowPktsPerSec": 1.996, "flowIATMean": 556596.9,
			"flowIATStd": 1664203.2, "flowIATMax": 5001025, "ackFlagCnt": 0,
			"initFwdWinByts": 8192, "initBwdWinByts": 211,
		},
	},
	{
		Label: 1, DstPort: 53, Protocol: 17,
		Flow: map[string]float64{
			"flowDuration": 604, "totFwdPkts": 1, "totBwdPkts": 1,
			"totLenFwdPkts": 37, "totLenBwdPkts": 139, "fwdPktLenMax": 37,
			"fwdPktLenMean": 37, "bwdPktLenMean": 139, "flowBytsPerSec": 291390.7,
			"flowPktsPerSec": 3311.258, "flowIATMean": 604, "flowIATMax": 604,
		},
	},
}
