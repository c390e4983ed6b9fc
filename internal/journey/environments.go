package journey

import (
	"sort"
	"strings"
)

// regionEnvironments maps Genesys Cloud app domains to SDK environments.
var regionEnvironments = map[string]string{
	"https://apps.mypurecloud.ie":         "prod-euw1",
	"https://apps.mypurecloud.de":         "prod-euc1",
	"https://apps.euw2.pure.cloud":        "prod-euw2",
	"https://apps.euc2.pure.cloud":        "prod-euc2",
	"https://apps.mypurecloud.com":        "prod-use1",
	"https://apps.use2.us-gov-pure.cloud": "prod-use2",
	"https://apps.usw2.pure.cloud":        "prod-usw2",
	"https://apps.cac1.pure.cloud":        "prod-cac1",
	"https://apps.sae1.pure.cloud":        "prod-sae1",
	"https://apps.aps1.pure.cloud":        "prod-aps1",
	"https://apps.apne2.pure.cloud":       "prod-apne2",
	"https://apps.mypurecloud.com.au":     "prod-apse2",
	"https://apps.apne3.pure.cloud":       "prod-apne3",
	"https://apps.mypurecloud.jp":         "prod-apne1",
	"https://apps.mec1.pure.cloud":        "prod-mec1",
}

// EnvironmentForDomain returns the SDK environment for a known region domain.
// A trailing slash on the domain is ignored.
func EnvironmentForDomain(domain string) (string, bool) {
	env, ok := regionEnvironments[strings.TrimSuffix(domain, "/")]
	return env, ok
}

// Domains returns every known region domain, sorted.
func Domains() []string {
	out := make([]string, 0, len(regionEnvironments))
	for d := range regionEnvironments {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
