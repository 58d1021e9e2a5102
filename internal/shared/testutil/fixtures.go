package testutil

// BSEDemandScheduleHTML is a cumulative demand schedule page: a layout
// table wrapping the data table, a serial-number column, an NII breakdown
// and a source totals row whose figures disagree with the categories.
const BSEDemandScheduleHTML = `<html><body>
<table class="layout"><tr><td>
  <table id="ContentPlaceHolder1_gvData" class="tablesorter">
    <tr><th>Sr.No</th><th>Category</th><th>No.of Shares Offered / Reserved</th><th>No. of shares bid for</th><th>No. of times of total meant for the category</th></tr>
    <tr><td>1</td><td>Qualified Institutional Buyers (QIBs)</td><td>3,00,000</td><td>15,00,000</td><td>5.00</td></tr>
    <tr><td>2</td><td>Non Institutional Investors</td><td>2,00,000</td><td>6,00,000</td><td>3.00</td></tr>
    <tr><td>2.1</td><td>Non Institutional Investors (More than Rs.10 lakh)</td><td>1,33,333</td><td>5,00,000</td><td>3.75</td></tr>
    <tr><td>2.2</td><td>Non Institutional Investors (Rs.2 lakh upto Rs.10 lakh)</td><td>66,667</td><td>1,00,000</td><td>1.50</td></tr>
    <tr><td>3</td><td>Retail Individual Investors (RIIs)</td><td>5,00,000</td><td>7,50,000</td><td>1.50</td></tr>
    <tr><td>4</td><td>Employees</td><td>20,000</td><td>10,000</td><td>0.50</td></tr>
    <tr><td>&nbsp;</td><td>Total</td><td>10,20,000</td><td>28,70,000</td><td>2.81</td></tr>
  </table>
</td></tr></table>
<table><tr><td>Disclaimer</td></tr></table>
</body></html>`

// BSEDemandScheduleTotals are the recomputed base-level totals of
// BSEDemandScheduleHTML.
const (
	BSEDemandScheduleOffered = 1020000
	BSEDemandScheduleBid     = 2860000
	BSEDemandScheduleRatio   = 2.80
)

// BSEIssueListHTML is a public issue list with two live IPOs (mainboard
// and SME) and rows that must be ignored: a live FPO, a forthcoming IPO
// and a live IPO without a detail link.
const BSEIssueListHTML = `<html><body>
<table class="mGrid">
  <tr><th>Security Name</th><th>Exchange Platform</th><th>Start Date</th><th>End Date</th><th>Offer Price</th><th>Face Value</th><th>Type Of Issue</th><th>Issue Status</th></tr>
  <tr>
    <td><a href="/markets/publicIssues/DisplayIPO.aspx?id=4567&amp;type=IPO&amp;idtype=1&amp;status=L">Acme Infra &amp; Power Ltd</a></td>
    <td>Main Board</td><td>13/10/2026</td><td>15/10/2026</td><td>Rs.100 - Rs.105</td><td>10</td><td>IPO</td><td>Live</td>
  </tr>
  <tr>
    <td><a href="/markets/publicIssues/DisplayIPO.aspx?ID=4570&amp;type=IPO">Sunrise Agro-Foods Ltd</a></td>
    <td>SME</td><td>14/10/2026</td><td>16/10/2026</td><td>Rs.52</td><td>10</td><td>IPO</td><td>Live</td>
  </tr>
  <tr>
    <td><a href="/markets/publicIssues/DisplayIPO.aspx?id=4571">Old Steel Ltd</a></td>
    <td>Main Board</td><td>14/10/2026</td><td>16/10/2026</td><td>Rs.300</td><td>10</td><td>FPO</td><td>Live</td>
  </tr>
  <tr>
    <td><a href="/markets/publicIssues/DisplayIPO.aspx?id=4580">Future Tech Ltd</a></td>
    <td>Main Board</td><td>20/10/2026</td><td>22/10/2026</td><td>Rs.10</td><td>1</td><td>IPO</td><td>Forthcoming</td>
  </tr>
  <tr>
    <td>Unlinked Ltd</td>
    <td>Main Board</td><td>13/10/2026</td><td>15/10/2026</td><td>Rs.10</td><td>1</td><td>IPO</td><td>Live</td>
  </tr>
</table>
</body></html>`

// NSEBidResponseJSON is an issue-information-bid payload using the
// current field names, with numbers as strings, a sub-tier breakdown and
// a totals record.
const NSEBidResponseJSON = `{"data":[
  {"srNo":"1","category":"Qualified Institutional Buyers(QIBs)","noOfShareOffered":"4,00,000","noOfSharesBid":"8,00,000","noOfTimes":"2.00"},
  {"srNo":"2","category":"Non Institutional Investors(NIIs)","noOfShareOffered":"3,00,000","noOfSharesBid":"9,00,000","noOfTimes":"3.00"},
  {"srNo":"2.1","category":"bNII (bids above ₹10L)","noOfShareOffered":"2,00,000","noOfSharesBid":"7,00,000","noOfTimes":"3.50"},
  {"srNo":"2.2","category":"sNII (bids below ₹10L)","noOfShareOffered":"1,00,000","noOfSharesBid":"2,00,000","noOfTimes":"2.00"},
  {"srNo":"3","category":"Retail Individual Investors(RIIs)","noOfShareOffered":"7,00,000","noOfSharesBid":"3,50,000","noOfTimes":"0.50"},
  {"srNo":"","category":"Total","noOfShareOffered":"14,00,000","noOfSharesBid":"20,50,000","noOfTimes":"1.46"}
]}`

// NSECurrentIssuesJSON is an ipo-current-issue payload.
const NSECurrentIssuesJSON = `[
  {"symbol":"ACMEINFRA","companyName":"Acme Infra & Power Limited","series":"EQ","issueStartDate":"13-Oct-2026","issueEndDate":"15-Oct-2026","status":"Active"},
  {"symbol":"SUNAGRO","companyName":"Sunrise Agro Foods Limited","series":"SME","issueStartDate":"14-Oct-2026","issueEndDate":"16-Oct-2026","status":"Active"}
]`
