package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ERC-20 interface (EIP-20): reads for the balance card plus
// transfer for the send form.
const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"Transfer","type":"event","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// Demo counter contract: a value, increment/decrement writes, and an event
// fired on every change. decrement reverts with "Counter: underflow" at zero.
const counterABIJSON = `[
	{"name":"value","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"increment","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"name":"decrement","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"name":"ValueChanged","type":"event","anonymous":false,"inputs":[{"name":"newValue","type":"uint256","indexed":false}]}
]`

var (
	parseOnce  sync.Once
	erc20ABI   abi.ABI
	counterABI abi.ABI
)

func contractABIs() (abi.ABI, abi.ABI) {
	parseOnce.Do(func() {
		var err error
		erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
		if err != nil {
			panic("chain: bad erc20 abi: " + err.Error())
		}
		counterABI, err = abi.JSON(strings.NewReader(counterABIJSON))
		if err != nil {
			panic("chain: bad counter abi: " + err.Error())
		}
	})
	return erc20ABI, counterABI
}
