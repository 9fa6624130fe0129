package dashboard

import "html/template"

var pageTemplate = template.Must(template.New("dashboard").Parse(pageHTML))

const pageHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Stopkeeper Dashboard</title>
<style>
  :root {
    --bg: #0b0d10; --card: #111418; --muted: #9aa4ad; --fg: #e6eef5; --border: #222831;
    --pos: #14b86e; --neg: #ff5a5f; --accent: #60a5fa;
  }
  @media (prefers-color-scheme: light) {
    :root {
      --bg:#f7f8fa; --card:#ffffff; --muted:#5b6670; --fg:#0b141a; --border:#dfe5ec;
      --pos:#0a7f4f; --neg:#c03a3e; --accent:#2563eb;
    }
  }
  * { box-sizing: border-box; }
  body { margin:0; background:var(--bg); color:var(--fg); font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial; padding:16px; }
  .container{max-width:1200px;margin:0 auto}
  header{display:flex;align-items:center;justify-content:space-between;gap:12px;margin-bottom:12px;flex-wrap:wrap}
  h1{font-size:20px;margin:0}
  .muted{color:var(--muted)}
  .grid{display:grid;grid-template-columns:repeat(4,minmax(0,1fr));gap:12px}
  @media (max-width:900px){.grid{grid-template-columns:repeat(2,minmax(0,1fr))}}
  @media (max-width:560px){.grid{grid-template-columns:1fr}}
  .card{background:var(--card);border:1px solid var(--border);border-radius:12px;padding:12px}
  .kpi .label{font-size:12px;color:var(--muted);margin-bottom:6px}
  .kpi .value{font-size:22px;font-weight:600}
  .section-title{font-size:16px;margin:14px 0 6px 0}
  .tablewrap{overflow:auto;border:1px solid var(--border);border-radius:12px}
  table{border-collapse:separate;border-spacing:0;width:100%;min-width:680px;background:var(--card)}
  th,td{padding:10px 12px;border-bottom:1px solid var(--border);font-size:14px;text-align:right;white-space:nowrap}
  th:first-child,td:first-child{text-align:left}
  thead th{position:sticky;top:0;background:var(--card);z-index:1}
  tbody tr:hover{background:rgba(96,165,250,.08)}
  .pos{color:var(--pos)} .neg{color:var(--neg)}
  .row{display:grid;grid-template-columns:2fr 1fr;gap:12px}
  @media (max-width:900px){.row{grid-template-columns:1fr}}
  .toolbar{display:flex;gap:8px;align-items:center;flex-wrap:wrap}
  select,button{padding:8px 10px;border-radius:10px;border:1px solid var(--border);background:var(--card);color:var(--fg)}
  .foot{margin-top:12px;color:var(--muted);font-size:12px}
  .chartbox{height:320px}
  @media (max-width:560px){.chartbox{height:260px}}
</style>
</head>
<body>
<div class="container">
  <header>
    <div>
      <h1>Stopkeeper Dashboard</h1>
      <div class="muted">Last update: {{.Timestamp}} (UTC)</div>
    </div>
    <div class="toolbar">
      <button id="equityToggle">Equity: Daily</button>
      <label class="muted" for="symSel" style="margin-left:8px">Symbol</label>
      <select id="symSel"></select>
      <button id="toggleMetric">Metric: % P/L</button>
    </div>
  </header>

  <div class="grid">
    <div class="card kpi"><div class="label">Portfolio Value</div><div class="value">{{.PortfolioValue}}</div></div>
    <div class="card kpi"><div class="label">Last Equity (prev close)</div><div class="value">{{.LastEquity}}</div></div>
    <div class="card kpi"><div class="label">Cash</div><div class="value">{{.Cash}}</div></div>
    <div class="card kpi"><div class="label">Buying Power</div><div class="value">{{.BuyingPower}}</div></div>
  </div>

  <div class="row">
    <div class="card">
      <div class="section-title">Equity History</div>
      <div class="chartbox"><canvas id="equityChart"></canvas></div>
      <div class="muted" style="font-size:12px;margin-top:6px">Default: Daily (one point per calendar day). Toggle to Intraday.</div>
    </div>
    <div class="card">
      <div class="section-title">Per-Symbol Performance</div>
      <div class="muted" style="font-size:13px;margin-bottom:6px">Switch between % P/L and Price</div>
      <div class="chartbox"><canvas id="symbolChart"></canvas></div>
    </div>
  </div>

  <div class="section-title">Positions</div>
  <div class="tablewrap">
    <table>
      <thead>
        <tr><th>Symbol</th><th>Qty</th><th>Avg Entry</th><th>Current</th><th>Market Value</th><th>Unreal P/L</th><th>Unreal P/L %</th></tr>
      </thead>
      <tbody>
        {{range .Positions}}<tr><td>{{.Symbol}}</td><td>{{.Qty}}</td><td>{{.AvgEntry}}</td><td>{{.Current}}</td><td>{{.MarketValue}}</td><td class="{{.PLClass}}">{{.UnrealPL}}</td><td class="{{.PLClass}}">{{.UnrealPLPC}}</td></tr>
        {{end}}
      </tbody>
    </table>
  </div>

  <div class="section-title">Open Orders</div>
  <div class="tablewrap">
    <table>
      <thead>
        <tr><th>ID</th><th>Symbol</th><th>Side</th><th>Type</th><th>Qty</th><th>Status</th><th>Submitted</th></tr>
      </thead>
      <tbody>
        {{range .Orders}}<tr><td class="muted">{{.ID}}</td><td>{{.Symbol}}</td><td>{{.Side}}</td><td>{{.Type}}</td><td>{{.Qty}}</td><td>{{.Status}}</td><td>{{.SubmittedAt}}</td></tr>
        {{end}}
      </tbody>
    </table>
  </div>

  <div class="foot">Static page generated by stopkeeper &middot; Mobile-friendly.</div>
</div>

<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<script>
const equityLabelsIntraday = {{.EquityLabelsIntraday}};
const equityValuesIntraday = {{.EquityValuesIntraday}};
const equityLabelsDaily = {{.EquityLabelsDaily}};
const equityValuesDaily = {{.EquityValuesDaily}};
const symbolHistory = {{.SymbolHistory}};

const eqCtx = document.getElementById('equityChart').getContext('2d');
let equityMode = 'daily';
function buildEquityDataset() {
  if (equityMode === 'daily') {
    return { labels: equityLabelsDaily, data: equityValuesDaily };
  }
  return { labels: equityLabelsIntraday, data: equityValuesIntraday };
}
function renderEquity() {
  const ds = buildEquityDataset();
  if (window.eqChart) window.eqChart.destroy();
  window.eqChart = new Chart(eqCtx, {
    type: 'line',
    data: { labels: ds.labels, datasets: [{ label:'Portfolio Value', data: ds.data, borderWidth:2, fill:false, tension:0.25 }] },
    options: {
      responsive:true, maintainAspectRatio:false,
      plugins:{ legend:{display:false} },
      scales:{ y:{ ticks:{ callback:(v)=>'$'+v.toLocaleString() } } }
    }
  });
}
renderEquity();

document.getElementById('equityToggle').addEventListener('click', ()=>{
  equityMode = (equityMode === 'daily') ? 'intraday' : 'daily';
  document.getElementById('equityToggle').textContent = 'Equity: ' + (equityMode === 'daily' ? 'Daily' : 'Intraday');
  renderEquity();
});

const symSel = document.getElementById('symSel');
const toggleBtn = document.getElementById('toggleMetric');
let metric = 'plpc';

const symbols = Object.keys(symbolHistory).sort();
for (const s of symbols) {
  const opt = document.createElement('option');
  opt.value = s; opt.textContent = s;
  symSel.appendChild(opt);
}
if (symbols.length === 0) {
  const opt = document.createElement('option');
  opt.value = ''; opt.textContent = 'No positions';
  symSel.appendChild(opt);
}

const symCtx = document.getElementById('symbolChart').getContext('2d');
let symChart = null;

function renderSymbolChart(sym) {
  if (!sym || !symbolHistory[sym]) return;
  const H = symbolHistory[sym];
  const labels = H.t;
  const data = (metric === 'plpc') ? H.plpc : H.price;
  const label = (metric === 'plpc') ? '% P/L' : 'Price';
  if (symChart) symChart.destroy();
  symChart = new Chart(symCtx, {
    type: 'line',
    data: { labels, datasets: [{ label: sym + ' ' + label, data, borderWidth:2, fill:false, tension:0.25 }] },
    options: {
      responsive:true, maintainAspectRatio:false,
      plugins:{ legend:{display:false} },
      scales:{ y:{ ticks:{ callback:(v)=> metric==='plpc' ? v.toFixed(2)+'%' : '$'+v.toLocaleString() } } }
    }
  });
}

symSel.addEventListener('change', ()=> renderSymbolChart(symSel.value));
toggleBtn.addEventListener('click', ()=>{
  metric = (metric === 'plpc') ? 'price' : 'plpc';
  toggleBtn.textContent = 'Metric: ' + (metric === 'plpc' ? '% P/L' : 'Price');
  renderSymbolChart(symSel.value);
});

if (symbols.length > 0) { symSel.value = symbols[0]; renderSymbolChart(symbols[0]); }
</script>
</body>
</html>
`
