package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs read-only contract calls. *chain.Client implements it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GetReserves reads the pool reserves of asset A and asset B.
func GetReserves(ctx context.Context, caller Caller, pool common.Address) (*big.Int, *big.Int, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, parsed, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserveA, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reserveA: %w", err)
	}
	reserveB, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("reserveB: %w", err)
	}
	return reserveA, reserveB, nil
}

// PoolAssets reads the two asset addresses the pool was deployed with.
func PoolAssets(ctx context.Context, caller Caller, pool common.Address) (common.Address, common.Address, error) {
	parsed, err := PoolABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, parsed, "tokenA")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	assetA, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("tokenA: %w", err)
	}
	values, err = callMethod(ctx, caller, pool, parsed, "tokenB")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	assetB, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("tokenB: %w", err)
	}
	return assetA, assetB, nil
}

// TotalSupply reads an ERC20 total supply. For the pool it is the LP supply.
func TotalSupply(ctx context.Context, caller Caller, token common.Address) (*big.Int, error) {
	return callUint(ctx, caller, token, "totalSupply")
}

// BalanceOf reads an ERC20 balance.
func BalanceOf(ctx context.Context, caller Caller, token common.Address, owner common.Address) (*big.Int, error) {
	return callUint(ctx, caller, token, "balanceOf", owner)
}

// Allowance reads how much spender may move on behalf of owner.
func Allowance(ctx context.Context, caller Caller, token common.Address, owner common.Address, spender common.Address) (*big.Int, error) {
	return callUint(ctx, caller, token, "allowance", owner, spender)
}

func callUint(ctx context.Context, caller Caller, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}

func callMethod(ctx context.Context, caller Caller, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
