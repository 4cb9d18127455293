package validator

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const ownerCheckerABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "nftContract", "type": "address"},
      {"internalType": "uint256[]", "name": "tokenIds", "type": "uint256[]"}
    ],
    "name": "getOwnersSafe",
    "outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const multicall3ABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bool", "name": "allowFailure", "type": "bool"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Call3[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "aggregate3",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	parsedABIs struct {
		ownerChecker abi.ABI
		multicall    abi.ABI
	}
	abiOnce sync.Once
	abiErr  error
)

func loadABIs() (abi.ABI, abi.ABI, error) {
	abiOnce.Do(func() {
		parsedABIs.ownerChecker, abiErr = abi.JSON(strings.NewReader(ownerCheckerABIJSON))
		if abiErr != nil {
			return
		}
		parsedABIs.multicall, abiErr = abi.JSON(strings.NewReader(multicall3ABIJSON))
	})
	return parsedABIs.ownerChecker, parsedABIs.multicall, abiErr
}
