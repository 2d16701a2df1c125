package archive

import (
	"fmt"
	"strings"
)

// ListingURL returns the search listing for page n: <searchBase>/page/<n>
func ListingURL(searchBase string, page int) string {
	return fmt.Sprintf("%s/page/%d", strings.TrimRight(searchBase, "/"), page)
}

// ThreadURL returns the thread page for id: <threadBase><id>
func ThreadURL(threadBase, threadID string) string {
	return threadBase + threadID
}
