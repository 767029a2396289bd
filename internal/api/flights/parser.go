package flights

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"flight-price-checker/internal/models"
	"flight-price-checker/internal/monitor"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CardSelector matches one fare card on the results page.
const CardSelector = "#international-content > div > div:nth-of-type(3) > div"

const layoverMarker = "경유"

var pricePattern = regexp.MustCompile(`왕복\s*([\d,]+)\s*원`)

func legPattern(from, to string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(\d{2}:\d{2})\s*%s\s+(\d{2}:\d{2})\s*%s`,
		regexp.QuoteMeta(from), regexp.QuoteMeta(to)))
}

// ParseListings extracts direct round-trip fares between origin and
// destination. It fails with monitor.ErrNoResults when the page has no fare
// cards and with monitor.ErrParseFailed when no card could be read.
func ParseListings(page []byte, origin, destination string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", monitor.ErrParseFailed, err)
	}

	cards := doc.Find(CardSelector)
	if cards.Length() == 0 {
		return nil, monitor.ErrNoResults
	}

	outbound := legPattern(origin, destination)
	inbound := legPattern(destination, origin)

	var listings []models.Listing
	cards.Each(func(_ int, card *goquery.Selection) {
		text := cardText(card)
		if strings.Contains(text, layoverMarker) {
			return
		}
		if l, ok := parseCard(text, outbound, inbound); ok {
			listings = append(listings, l)
		}
	})

	if len(listings) == 0 {
		return nil, fmt.Errorf("%w: %d cards, none readable", monitor.ErrParseFailed, cards.Length())
	}

	return listings, nil
}

func parseCard(text string, outbound, inbound *regexp.Regexp) (models.Listing, bool) {
	dep := outbound.FindStringSubmatch(text)
	ret := inbound.FindStringSubmatch(text)
	price := pricePattern.FindStringSubmatch(text)
	if dep == nil || ret == nil || price == nil {
		return models.Listing{}, false
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(price[1], ",", ""), 10, 64)
	if err != nil {
		return models.Listing{}, false
	}

	var clocks [4]models.Clock
	for i, s := range []string{dep[1], dep[2], ret[1], ret[2]} {
		c, err := models.ParseClock(s)
		if err != nil {
			return models.Listing{}, false
		}
		clocks[i] = c
	}

	return models.Listing{
		FlightID:  fmt.Sprintf("%s-%s/%s-%s", dep[1], dep[2], ret[1], ret[2]),
		Price:     amount,
		Departure: clocks[0],
		Arrival:   clocks[1],
		Return:    clocks[2],
		ReturnArr: clocks[3],
	}, true
}

// cardText joins the card's text nodes with single spaces, the way a browser
// separates rendered blocks.
func cardText(card *goquery.Selection) string {
	var parts []string
	for _, n := range card.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
