package wayback

import (
	"io"
	"strings"

	"rapture/utils"

	"github.com/PuerkitoBio/goquery"
)

// Headers are the snapshot CSV columns in file order.
var Headers = []string{
	"data_key", "id", "row_num", "name", "team", "pos", "mp",
	"rap_box_o", "rap_box_d", "rap_box", "rap_onoff_o", "rap_onoff_d",
	"rap_onoff", "rap_o", "rap_d", "rap", "war",
}

// Row is one player line of a snapshot, keyed by column name.
type Row map[string]string

func (r Row) Name() string { return r["name"] }
func (r Row) Team() string { return r["team"] }

// ParseRaptor extracts player rows from a ratings page. Each player is a
// tr[data-key]; its cells fill the columns after data_key and id in order.
// Cells without text fall back to their data-val attribute.
func ParseRaptor(r io.Reader) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	var rows []Row
	doc.Find("tr[data-key]").Each(func(i int, s *goquery.Selection) {
		row := Row{}
		row["data_key"], _ = s.Attr("data-key")
		row["id"], _ = s.Attr("id")
		s.Find("td").Each(func(j int, td *goquery.Selection) {
			col := 2 + j
			if col >= len(Headers) {
				return
			}
			v := strings.TrimSpace(td.Text())
			if v == "" {
				v, _ = td.Attr("data-val")
				v = strings.TrimSpace(v)
			}
			row[Headers[col]] = v
		})
		if row.Name() == "" {
			return
		}
		rows = append(rows, row)
	})
	return rows, nil
}
