package services

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snow-extractor/internal/models"
)

const listViewHTML = `<html><body>
<table class="data_list_table">
  <tbody>
    <tr class="list_row" sys_id="a1">
      <td name="number">INC0010001</td>
      <td name="short_description">Email down</td>
      <td name="priority"><span>1 - Critical</span></td>
    </tr>
    <tr class="list_row" sys_id="a2">
      <td name="number">INC0010002</td>
      <td name="short_description"></td>
      <td name="priority"></td>
    </tr>
    <tr class="list_row" sys_id="a3">
      <td name="number"></td>
      <td name="short_description"></td>
      <td name="priority"></td>
    </tr>
  </tbody>
</table>
</body></html>`

const formViewHTML = `<html><body>
<form>
  <input type="hidden" id="sys_uniqueValue" value="f00d">
  <input id="incident.number" name="incident.number" value="INC0020002">
  <input id="sys_display.incident.assigned_to" value="Beth Anglin">
  <select name="incident.state">
    <option value="1">New</option>
    <option value="2" selected>In Progress</option>
  </select>
  <textarea id="incident.short_description">Printer   jammed
  again</textarea>
</form>
</body></html>`

func TestExtractListViewRowThreshold(t *testing.T) {
	e := NewDOMExtractor(testLogger(), false)
	doc, err := e.ParseDocument(listViewHTML)
	require.NoError(t, err)

	records := e.ExtractListView(doc, []string{"number", "short_description", "priority", "sys_id"})
	require.Len(t, records, 2)

	assert.Equal(t, "a1", records[0].SysID())
	assert.Equal(t, "1 - Critical", records[0].Fields["priority"].Value)
	assert.Equal(t, "a2", records[1].SysID())
	assert.Equal(t, "INC0010002", records[1].Fields["number"].Value)
}

func TestExtractListViewSkipsRowsThatPanic(t *testing.T) {
	html := `<table><tbody>
		<tr sys_id="r1"><td name="number">INC0040001</td></tr>
		<tr sys_id="r2"><td name="number">INC0040002</td></tr>
		<tr sys_id="r3"><td name="number">INC0040003</td></tr>
	</tbody></table>`

	e := NewDOMExtractor(testLogger(), false)
	e.extractRow = func(row *goquery.Selection, index int, fields []string) models.RawRecord {
		if index == 1 {
			panic("malformed row")
		}
		return heuristicRow(row, index, fields)
	}
	doc, err := e.ParseDocument(html)
	require.NoError(t, err)

	records := e.ExtractListView(doc, []string{"number"})
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].SysID())
	assert.Equal(t, "r3", records[1].SysID())
	assert.Equal(t, "INC0040003", records[1].Fields["number"].Value)
}

func TestSafeRowRecoversPanic(t *testing.T) {
	e := NewDOMExtractor(testLogger(), false)

	_, ok := e.safeRow(4, func() models.RawRecord { panic("malformed cell") })
	assert.False(t, ok)

	record, ok := e.safeRow(5, func() models.RawRecord { return rawRecord(map[string]string{"sys_id": "x"}) })
	assert.True(t, ok)
	assert.Equal(t, "x", record.SysID())
}

func TestExtractListViewContentRowsGetPositionalIDs(t *testing.T) {
	html := `<table><tbody>
		<tr><td>Header junk</td></tr>
		<tr><td class="vt">INC0030003</td><td class="short_description">VPN drops</td></tr>
	</tbody></table>`

	e := NewDOMExtractor(testLogger(), false)
	doc, err := e.ParseDocument(html)
	require.NoError(t, err)

	records := e.ExtractListView(doc, []string{"number", "short_description"})
	require.Len(t, records, 1)
	assert.Equal(t, "row_0", records[0].SysID())
	assert.Equal(t, "INC0030003", records[0].Fields["number"].Value)
	assert.Equal(t, "VPN drops", records[0].Fields["short_description"].Value)
}

func TestExtractListViewNoRows(t *testing.T) {
	e := NewDOMExtractor(testLogger(), true)
	doc, err := e.ParseDocument(`<html><body><p>Welcome</p></body></html>`)
	require.NoError(t, err)

	assert.Empty(t, e.ExtractListView(doc, []string{"number"}))
}

func TestExtractListViewEnhanced(t *testing.T) {
	html := `<table class="list_table">
	  <thead><tr><th>Number</th><th>Short description</th><th>Assigned to</th></tr></thead>
	  <tbody>
	    <tr sys_id="e1"><td><a href="#">INC0040004</a></td><td>Disk full</td><td title="Fred Luddy"></td></tr>
	    <tr sys_id="e2"><td><a href="#">INC0040005</a></td><td><span>Slow login</span></td><td>Beth Anglin</td></tr>
	  </tbody>
	</table>`

	e := NewDOMExtractor(testLogger(), true)
	doc, err := e.ParseDocument(html)
	require.NoError(t, err)

	records := e.ExtractListView(doc, []string{"number", "short_description", "assigned_to"})
	require.Len(t, records, 2)
	assert.Equal(t, "e1", records[0].SysID())
	assert.Equal(t, "INC0040004", records[0].Fields["number"].Value)
	assert.Equal(t, "Disk full", records[0].Fields["short_description"].Value)
	assert.Equal(t, "Fred Luddy", records[0].Fields["assigned_to"].Value)
	assert.Equal(t, "Slow login", records[1].Fields["short_description"].Value)
}

func TestExtractFormView(t *testing.T) {
	e := NewDOMExtractor(testLogger(), true)
	doc, err := e.ParseDocument(formViewHTML)
	require.NoError(t, err)

	records := e.ExtractFormView(doc, []string{"number", "state", "assigned_to", "short_description", "priority"})
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "f00d", record.SysID())
	assert.Equal(t, "INC0020002", record.Fields["number"].Value)
	assert.Equal(t, "In Progress", record.Fields["state"].Value)
	assert.Equal(t, "Beth Anglin", record.Fields["assigned_to"].Value)
	assert.Equal(t, "Printer jammed again", record.Fields["short_description"].Value)
	assert.Equal(t, "", record.Fields["priority"].Value)
}

func TestExtractFormViewFallbackID(t *testing.T) {
	e := NewDOMExtractor(testLogger(), false)
	doc, err := e.ParseDocument(`<div>Viewing CHG0001234567 details</div>`)
	require.NoError(t, err)

	records := e.ExtractFormView(doc, []string{"number"})
	require.Len(t, records, 1)
	assert.Equal(t, "form_CHG0001234567", records[0].SysID())
}

func TestExtractFormViewEmpty(t *testing.T) {
	e := NewDOMExtractor(testLogger(), false)
	doc, err := e.ParseDocument(`<div>nothing here</div>`)
	require.NoError(t, err)

	assert.Empty(t, e.ExtractFormView(doc, []string{"number", "state"}))
}

func TestTicketNumberPattern(t *testing.T) {
	assert.Equal(t, "INC0012345", ticketNumberPattern.FindString("see INC0012345 now"))
	assert.Equal(t, "RITM0001234", ticketNumberPattern.FindString("RITM0001234"))
	assert.Empty(t, ticketNumberPattern.FindString("INC123"))
	assert.Empty(t, ticketNumberPattern.FindString("inc0012345"))
}
