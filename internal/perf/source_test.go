package perf

import (
	"fmt"
	"strings"
)

var (
	perfCurrencies = []string{"EUR", "GBP", "USD", "KRW", "AUD", "SGD"}
	perfCountries  = []string{"GB", "US", "KR", "AU", "SG", "DE", "FR"}
	perfStatuses   = []string{"440-BILLED", "440-BILLED", "440-BILLED", "300-PENDING", "500-CANCELLED"}
)

// generateSource renders n deterministic order rows spread over 200
// accounts and twelve months.
func generateSource(n int) string {
	var b strings.Builder
	b.WriteString("ORD DT,ACCT,ACCT NM,OFC,ORD#,PU COST,SHIP COST,MAN COST,DEL COST,Total cost,NET,CURR,INV#,TOTAL$,STATUS,PU CTRY\n")
	for i := 0; i < n; i++ {
		acct := i % 200
		pickup := float64(i%37) + 0.5
		shipping := float64(i%53) * 1.25
		manufacturing := float64(i % 11)
		delivery := float64(i%19) * 0.75
		total := pickup + shipping + manufacturing + delivery
		net := total * (0.7 + float64(i%9)*0.1)
		fmt.Fprintf(&b, "2025-%02d-%02d,ACC%03d,Account %03d,OFC%d,ORD%06d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%s,INV%06d,%.2f,%s,%s\n",
			i%12+1, i%28+1, acct, acct, i%5, i,
			pickup, shipping, manufacturing, delivery, total, net,
			perfCurrencies[i%len(perfCurrencies)], i, net,
			perfStatuses[i%len(perfStatuses)], perfCountries[acct%len(perfCountries)])
	}
	return b.String()
}
