package analytics

import (
	"sort"
	"strconv"
	"time"
)

// TopN 是每个窗口内排名的交互地址数量。
const TopN = 3

// TransactionRecord 是一条与被分析合约相关的索引交易，To 为空表示合约创建。
type TransactionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	GasSpent  uint64    `json:"gas_spent"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

// PerWindow 为每个回溯窗口保存一个值。
type PerWindow[T any] struct {
	OneDay     T `json:"1d"`
	SevenDays  T `json:"7d"`
	ThirtyDays T `json:"30d"`
}

// Summary 是合约在三个窗口内的活跃度概览。
type Summary struct {
	GasSpent        PerWindow[string]   `json:"gasSpent"`
	TxCount         PerWindow[int]      `json:"txCount"`
	UniqueAddresses PerWindow[int]      `json:"uniqueAddresses"`
	TopAddresses    PerWindow[[]string] `json:"topAddresses"`
}

// EmptySummary 返回空历史对应的概览。
func EmptySummary() Summary {
	return Summary{
		GasSpent:     PerWindow[string]{OneDay: formatGas(0), SevenDays: formatGas(0), ThirtyDays: formatGas(0)},
		TopAddresses: PerWindow[[]string]{OneDay: []string{}, SevenDays: []string{}, ThirtyDays: []string{}},
	}
}

type bucket struct {
	lower time.Time
	gas   uint64
	count int
	freq  map[string]int
	order []string
}

func newBucket(ref time.Time, days int) *bucket {
	return &bucket{lower: ref.AddDate(0, 0, -days), freq: make(map[string]int)}
}

func (b *bucket) add(rec TransactionRecord) {
	b.gas += rec.GasSpent
	b.count++
	b.touch(rec.From)
	b.touch(rec.To)
}

func (b *bucket) touch(addr string) {
	if addr == "" {
		return
	}
	if _, seen := b.freq[addr]; !seen {
		b.order = append(b.order, addr)
	}
	b.freq[addr]++
}

// top 按交互次数降序排名，次数相同时保持首次出现的顺序。
func (b *bucket) top(n int) []string {
	ranked := make([]string, len(b.order))
	copy(ranked, b.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return b.freq[ranked[i]] > b.freq[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Aggregate 计算截至 ref 的 1d、7d、30d 窗口。满足 lower <= timestamp <= ref
// 的记录计入该窗口，窗口之间相互重叠。不会修改输入记录。
func Aggregate(records []TransactionRecord, ref time.Time) Summary {
	if len(records) == 0 {
		return EmptySummary()
	}

	day, week, month := newBucket(ref, 1), newBucket(ref, 7), newBucket(ref, 30)
	for _, rec := range records {
		if rec.Timestamp.After(ref) {
			continue
		}
		for _, b := range []*bucket{day, week, month} {
			if !rec.Timestamp.Before(b.lower) {
				b.add(rec)
			}
		}
	}

	return Summary{
		GasSpent: PerWindow[string]{
			OneDay:     formatGas(day.gas),
			SevenDays:  formatGas(week.gas),
			ThirtyDays: formatGas(month.gas),
		},
		TxCount: PerWindow[int]{OneDay: day.count, SevenDays: week.count, ThirtyDays: month.count},
		UniqueAddresses: PerWindow[int]{
			OneDay:     len(day.freq),
			SevenDays:  len(week.freq),
			ThirtyDays: len(month.freq),
		},
		TopAddresses: PerWindow[[]string]{
			OneDay:     day.top(TopN),
			SevenDays:  week.top(TopN),
			ThirtyDays: month.top(TopN),
		},
	}
}

func formatGas(total uint64) string {
	return strconv.FormatUint(total, 10) + " gwei"
}
