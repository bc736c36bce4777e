package cypher

import (
	"fmt"
	"strings"
)

func singleIndexQuery(label, key string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", Identifier(label), Identifier(key))
}

func compositeIndexQuery(label string, keys []string) string {
	props := make([]string, len(keys))
	for i, k := range keys {
		props[i] = "n." + Identifier(k)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (%s)", Identifier(label), strings.Join(props, ", "))
}
