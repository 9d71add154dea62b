package analytics

import (
	"fmt"
	"strings"
)

// RenderReport 将概览格式化为返回给对话用户的 markdown 文本。
func RenderReport(s Summary) string {
	var b strings.Builder
	b.WriteString("**Contract Analytics:**\n\n")

	b.WriteString("**Gas Spent:**\n")
	writeWindows(&b, s.GasSpent.OneDay, s.GasSpent.SevenDays, s.GasSpent.ThirtyDays)

	b.WriteString("\n**Transaction Count:**\n")
	writeWindows(&b, s.TxCount.OneDay, s.TxCount.SevenDays, s.TxCount.ThirtyDays)

	b.WriteString("\n**Unique Addresses:**\n")
	writeWindows(&b, s.UniqueAddresses.OneDay, s.UniqueAddresses.SevenDays, s.UniqueAddresses.ThirtyDays)

	b.WriteString("\n**Top Addresses by Interactions:**\n")
	b.WriteString("- 1 Day:\n")
	writeRanking(&b, s.TopAddresses.OneDay)
	b.WriteString("- 7 Days:\n")
	writeRanking(&b, s.TopAddresses.SevenDays)
	b.WriteString("- 30 Days:\n")
	writeRanking(&b, s.TopAddresses.ThirtyDays)
	return b.String()
}

func writeWindows[T any](b *strings.Builder, day, week, month T) {
	fmt.Fprintf(b, "  - Last 1 Day: %v\n", day)
	fmt.Fprintf(b, "  - Last 7 Days: %v\n", week)
	fmt.Fprintf(b, "  - Last 30 Days: %v\n", month)
}

func writeRanking(b *strings.Builder, addresses []string) {
	if len(addresses) == 0 {
		b.WriteString("None\n")
		return
	}
	for i, addr := range addresses {
		fmt.Fprintf(b, "%d. %s\n", i+1, addr)
	}
}
