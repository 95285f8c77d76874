package domain

import "encoding/hex"

// StateEncodingPrefix 标记画布状态列中经过十六进制编码的值。
// 二进制文档状态不能直接存进文本列，编码格式为: 前缀 + 小写 hex。
const StateEncodingPrefix = `\x`

// EncodeState 将二进制文档状态编码为可存储的文本形式。
// 空状态编码为只有前缀的字符串，解码后仍是空字节序列而非缺失。
func EncodeState(state []byte) string {
	return StateEncodingPrefix + hex.EncodeToString(state)
}

// DecodeState 将状态列的文本值还原为二进制文档状态。
// 第二个返回值为 false 表示状态缺失 (空值或前缀后跟着无法解析的内容)。
//
// 为兼容历史数据，没有前缀的值也会尝试按 hex 解析；
// 解析失败时视为遗留的原始字节序列，原样返回。
func DecodeState(raw string) ([]byte, bool) {
	if raw == "" {
		return nil, false
	}
	if len(raw) >= len(StateEncodingPrefix) && raw[:len(StateEncodingPrefix)] == StateEncodingPrefix {
		state, err := hex.DecodeString(raw[len(StateEncodingPrefix):])
		if err != nil {
			return nil, false
		}
		return state, true
	}
	if state, err := hex.DecodeString(raw); err == nil {
		return state, true
	}
	return []byte(raw), true
}
