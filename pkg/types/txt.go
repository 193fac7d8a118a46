package types

import (
	"strings"
)

// TxtRecord 单条 TXT 属性
//
// HasValue 为 false 表示布尔属性（线上格式为裸 key），
// 为 true 时即使 Value 为空，线上格式也是 "key="。
type TxtRecord struct {
	Key      string
	Value    string
	HasValue bool
}

// String 返回线上格式 key=value 或 key
func (r TxtRecord) String() string {
	if !r.HasValue {
		return r.Key
	}
	return r.Key + "=" + r.Value
}

// ParseTxtRecord 解析 key=value 或 key
//
// 只按第一个 '=' 拆分，值中可以包含 '='。
func ParseTxtRecord(s string) TxtRecord {
	key, value, ok := strings.Cut(s, "=")
	return TxtRecord{Key: key, Value: value, HasValue: ok}
}

// TxtRecords 有序 TXT 属性列表
//
// 同一个键只保留一条：后出现的值覆盖先出现的值，位置保持首次出现的位置。
// 键比较不区分大小写（RFC 6763 §6.4）。
type TxtRecords []TxtRecord

// Set 设置属性，不带 value 时为布尔属性
func (t *TxtRecords) Set(key string, value ...string) {
	rec := TxtRecord{Key: key}
	if len(value) > 0 {
		rec.Value = strings.Join(value, "")
		rec.HasValue = true
	}
	t.put(rec)
}

func (t *TxtRecords) put(rec TxtRecord) {
	for i := range *t {
		if strings.EqualFold((*t)[i].Key, rec.Key) {
			(*t)[i] = rec
			return
		}
	}
	*t = append(*t, rec)
}

// Get 按键查找属性值
func (t TxtRecords) Get(key string) (string, bool) {
	for _, r := range t {
		if strings.EqualFold(r.Key, key) {
			return r.Value, true
		}
	}
	return "", false
}

// Map 转换为 map，布尔属性的值为空字符串
func (t TxtRecords) Map() map[string]string {
	m := make(map[string]string, len(t))
	for _, r := range t {
		m[r.Key] = r.Value
	}
	return m
}

// Equal 逐项比较
func (t TxtRecords) Equal(o TxtRecords) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone 深拷贝
func (t TxtRecords) Clone() TxtRecords {
	if t == nil {
		return nil
	}
	out := make(TxtRecords, len(t))
	copy(out, t)
	return out
}

// TxtFromStrings 从线上字符串列表构建属性列表
//
// 空字符串被忽略（RFC 6763 §6.1 空 TXT 记录的占位）。
func TxtFromStrings(ss []string) TxtRecords {
	var out TxtRecords
	for _, s := range ss {
		if s == "" {
			continue
		}
		rec := ParseTxtRecord(s)
		if rec.Key == "" {
			continue
		}
		out.put(rec)
	}
	return out
}
