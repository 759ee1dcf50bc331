package shelterboard

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Sign In</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Noto Sans', Helvetica, Arial, sans-serif;
            background: #0d1117;
            color: #c9d1d9;
            display: flex;
            align-items: center;
            justify-content: center;
            min-height: 100vh;
        }
        .login-card {
            background: #161b22;
            border: 1px solid #30363d;
            border-radius: 6px;
            padding: 32px;
            width: 340px;
        }
        .login-card h1 {
            font-size: 20px;
            color: #58a6ff;
            margin-bottom: 8px;
        }
        .login-card p {
            font-size: 14px;
            color: #8b949e;
            margin-bottom: 20px;
        }
        label {
            display: block;
            font-size: 13px;
            color: #8b949e;
            margin-bottom: 6px;
        }
        input[type="password"] {
            width: 100%;
            padding: 8px 10px;
            background: #0d1117;
            border: 1px solid #30363d;
            border-radius: 6px;
            color: #c9d1d9;
            font-size: 14px;
            margin-bottom: 16px;
        }
        input[type="password"]:focus {
            outline: none;
            border-color: #58a6ff;
        }
        button {
            width: 100%;
            padding: 8px 0;
            background: #238636;
            border: 1px solid rgba(240, 246, 252, 0.1);
            border-radius: 6px;
            color: #ffffff;
            font-size: 14px;
            font-weight: 600;
            cursor: pointer;
        }
        button:hover {
            background: #2ea043;
        }
        .error {
            background: rgba(248, 81, 73, 0.1);
            border: 1px solid rgba(248, 81, 73, 0.4);
            border-radius: 6px;
            color: #f85149;
            font-size: 13px;
            padding: 8px 10px;
            margin-bottom: 16px;
        }
    </style>
</head>
<body>
    <div class="login-card">
        <h1>{{.Title}}</h1>
        <p>Enter the dashboard password to continue.</p>
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
        <form method="POST" action="/login">
            <label for="password">Password</label>
            <input type="password" id="password" name="password" autofocus autocomplete="current-password">
            <button type="submit">Sign in</button>
        </form>
    </div>
</body>
</html>`

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #f0f6fc;
            --text-secondary: #8b949e;
            --accent-blue: #58a6ff;
            --accent-green: #3fb950;
            --accent-red: #f85149;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Noto Sans', Helvetica, Arial, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
        }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            padding: 16px 0;
            border-bottom: 1px solid var(--border-color);
            margin-bottom: 20px;
        }

        header h1 {
            font-size: 22px;
            color: var(--accent-blue);
        }

        .header-meta {
            display: flex;
            align-items: center;
            gap: 16px;
            font-size: 13px;
            color: var(--text-secondary);
        }

        .live-dot {
            display: inline-block;
            width: 8px;
            height: 8px;
            border-radius: 50%;
            background: var(--accent-red);
            margin-right: 6px;
        }

        .live-dot.connected {
            background: var(--accent-green);
        }

        .logout-btn {
            padding: 5px 12px;
            background: var(--bg-tertiary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            color: var(--text-primary);
            font-size: 13px;
            cursor: pointer;
        }

        .logout-btn:hover {
            border-color: var(--accent-red);
            color: var(--accent-red);
        }

        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 20px;
            margin-bottom: 20px;
        }

        .card h2 {
            font-size: 13px;
            color: var(--text-secondary);
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 14px;
        }

        .controls-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 16px;
            margin-bottom: 16px;
        }

        .control label {
            display: block;
            font-size: 13px;
            color: var(--text-secondary);
            margin-bottom: 6px;
        }

        select, input[type="number"] {
            width: 100%;
            padding: 6px 8px;
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            color: var(--text-primary);
            font-size: 14px;
        }

        select:focus, input[type="number"]:focus {
            outline: none;
            border-color: var(--accent-blue);
        }

        .checkbox-row {
            display: flex;
            align-items: center;
            gap: 8px;
            font-size: 14px;
            margin-bottom: 8px;
        }

        .families {
            display: flex;
            flex-wrap: wrap;
            gap: 14px;
            margin-bottom: 16px;
        }

        .families label {
            display: flex;
            align-items: center;
            gap: 6px;
            font-size: 14px;
            cursor: pointer;
        }

        .slider-row {
            display: flex;
            align-items: center;
            gap: 10px;
        }

        .slider-row input[type="range"] {
            flex: 1;
        }

        .slider-value {
            min-width: 2ch;
            text-align: right;
            font-variant-numeric: tabular-nums;
        }

        .actions {
            display: flex;
            align-items: center;
            gap: 12px;
        }

        .primary-btn {
            padding: 7px 16px;
            background: #238636;
            border: 1px solid rgba(240, 246, 252, 0.1);
            border-radius: 6px;
            color: #ffffff;
            font-size: 14px;
            font-weight: 600;
            cursor: pointer;
        }

        .primary-btn:hover {
            background: #2ea043;
        }

        .secondary-btn {
            padding: 7px 12px;
            background: var(--bg-tertiary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            color: var(--text-primary);
            font-size: 13px;
            cursor: pointer;
        }

        .hint {
            font-size: 13px;
            color: var(--accent-red);
        }

        .hidden {
            display: none;
        }

        .chart-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 20px;
            margin-bottom: 20px;
        }

        .chart-head {
            display: flex;
            justify-content: space-between;
            align-items: baseline;
            margin-bottom: 12px;
        }

        .chart-head h3 {
            font-size: 15px;
        }

        .chart-head a {
            color: var(--accent-blue);
            font-size: 12px;
            text-decoration: none;
            margin-left: 10px;
        }

        .chart-head a:hover {
            text-decoration: underline;
        }

        .chart-body {
            position: relative;
            height: 320px;
        }

        .toast {
            position: fixed;
            bottom: 20px;
            right: 20px;
            background: var(--bg-tertiary);
            border: 1px solid var(--accent-green);
            border-radius: 6px;
            color: var(--text-primary);
            font-size: 13px;
            padding: 10px 14px;
            z-index: 200;
        }

        .empty {
            text-align: center;
            color: var(--text-secondary);
            padding: 40px 0;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Title}}</h1>
            <div class="header-meta">
                {{if .LiveUpdates}}<span><span class="live-dot" id="liveDot"></span>live</span>{{end}}
                {{if .Source}}<span>{{.Source}} (loaded {{.LoadedAt}})</span>{{end}}
                {{if .GateEnabled}}
                <form method="POST" action="/logout">
                    <button type="submit" class="logout-btn">Sign out</button>
                </form>
                {{end}}
            </div>
        </header>

        <div class="card">
            <h2>Controls</h2>
            <div class="controls-grid">
                <div class="control">
                    <label for="orgSelect">Organization</label>
                    <select id="orgSelect">
                        {{range .Orgs}}<option value="{{.ID}}">{{.Name}} (#{{.ID}})</option>
                        {{end}}
                    </select>
                </div>
                <div class="control">
                    <label for="orgInput">Organization ID (overrides)</label>
                    <input type="number" id="orgInput" placeholder="e.g. 42">
                </div>
                <div class="control">
                    <label for="variantSelect">Variant</label>
                    <select id="variantSelect">
                        {{range .Variants}}<option value="{{.Value}}">{{.Label}}</option>
                        {{end}}
                    </select>
                </div>
                <div class="control">
                    <label>Smoothing</label>
                    <div class="checkbox-row">
                        <input type="checkbox" id="smoothToggle" {{if .SmoothOn}}checked{{end}}>
                        <select id="methodSelect">
                            {{range .Methods}}<option value="{{.Value}}" {{if eq .Value $.DefaultMethod}}selected{{end}}>{{.Label}}</option>
                            {{end}}
                        </select>
                    </div>
                    <div class="slider-row">
                        <input type="range" id="windowSlider" min="{{.MinWindow}}" max="{{.MaxWindow}}" value="{{.DefaultWindow}}">
                        <span class="slider-value" id="windowValue">{{.DefaultWindow}}</span>
                    </div>
                </div>
            </div>

            <div class="families" id="familyBoxes">
                {{range .Families}}<label><input type="checkbox" name="family" value="{{.Key}}" checked> {{.Title}}</label>
                {{end}}
            </div>

            <div class="actions">
                <button class="primary-btn" id="showBtn">Show Plots</button>
                {{if .SavedViews}}
                <select id="viewSelect">
                    <option value="">Saved views...</option>
                </select>
                <button class="secondary-btn" id="saveViewBtn">Save view</button>
                <button class="secondary-btn" id="deleteViewBtn">Delete view</button>
                {{end}}
                <span class="hint hidden" id="familyHint">Select at least one plot.</span>
            </div>
        </div>

        <div id="charts">
            <div class="empty">Pick an organization and press Show Plots.</div>
        </div>
    </div>

    <script>
        var chartInstances = [];

        function selectedFamilies() {
            var boxes = document.querySelectorAll('#familyBoxes input[name="family"]:checked');
            var keys = [];
            boxes.forEach(function(box) { keys.push(box.value); });
            return keys;
        }

        function orgParam() {
            var manual = document.getElementById('orgInput').value.trim();
            if (manual !== '') {
                return manual;
            }
            return document.getElementById('orgSelect').value;
        }

        function buildParams(families) {
            var params = new URLSearchParams();
            params.set('org', orgParam());
            params.set('families', families.join(','));
            params.set('variant', document.getElementById('variantSelect').value);
            if (document.getElementById('smoothToggle').checked) {
                params.set('smooth', '1');
                params.set('method', document.getElementById('methodSelect').value);
                params.set('window', document.getElementById('windowSlider').value);
            }
            return params;
        }

        function exportHref(family, format) {
            var params = buildParams([family]);
            params.delete('families');
            params.set('family', family);
            params.set('format', format);
            return '/api/export?' + params.toString();
        }

        function destroyCharts() {
            chartInstances.forEach(function(c) { c.destroy(); });
            chartInstances = [];
        }

        function showError(message) {
            destroyCharts();
            document.getElementById('charts').innerHTML =
                '<div class="card"><span class="hint">' + message + '</span></div>';
        }

        async function loadCharts() {
            var families = selectedFamilies();
            var hint = document.getElementById('familyHint');
            if (families.length === 0) {
                hint.classList.remove('hidden');
                return;
            }
            hint.classList.add('hidden');

            try {
                var res = await fetch('/api/charts?' + buildParams(families).toString());
                var body = await res.json();
                if (body.status !== 'success') {
                    showError(body.error || 'Request failed.');
                    return;
                }
                renderCharts(body.data);
            } catch (err) {
                console.error('Failed to load charts:', err);
                showError('Could not reach the server.');
            }
        }

        function renderCharts(charts) {
            destroyCharts();
            var container = document.getElementById('charts');
            container.innerHTML = '';

            charts.forEach(function(chart, i) {
                var card = document.createElement('div');
                card.className = 'chart-card';

                var head = document.createElement('div');
                head.className = 'chart-head';
                var title = document.createElement('h3');
                title.textContent = chart.title;
                var links = document.createElement('span');
                links.innerHTML =
                    '<a href="' + exportHref(chart.family, 'csv') + '">CSV</a>' +
                    '<a href="' + exportHref(chart.family, 'json') + '">JSON</a>';
                head.appendChild(title);
                head.appendChild(links);

                var body = document.createElement('div');
                body.className = 'chart-body';
                var canvas = document.createElement('canvas');
                body.appendChild(canvas);

                card.appendChild(head);
                card.appendChild(body);
                container.appendChild(card);

                chartInstances.push(makeChart(canvas, chart));
            });
        }

        function makeChart(canvas, chart) {
            var datasets = chart.traces.map(function(trace) {
                return {
                    label: trace.label,
                    data: trace.values,
                    borderColor: trace.color,
                    backgroundColor: chart.stacked ? trace.color : hexToRgba(trace.color, 0.1),
                    fill: chart.stacked ? 'origin' : false,
                    tension: 0.2,
                    pointRadius: 2,
                    spanGaps: false,
                    hoverText: trace.hover
                };
            });

            var yScale = {
                stacked: chart.stacked,
                title: { display: true, text: chart.y_axis.title, color: '#8b949e' },
                grid: { color: 'rgba(128, 128, 128, 0.1)' },
                ticks: { color: '#8b949e' }
            };
            if (chart.y_axis.min !== undefined && chart.y_axis.min !== null) {
                yScale.min = chart.y_axis.min;
            }
            if (chart.y_axis.max !== undefined && chart.y_axis.max !== null) {
                yScale.max = chart.y_axis.max;
            }

            return new Chart(canvas, {
                type: 'line',
                data: {
                    labels: chart.labels,
                    datasets: datasets
                },
                options: {
                    responsive: true,
                    maintainAspectRatio: false,
                    interaction: { mode: 'index', intersect: false },
                    plugins: {
                        legend: { labels: { color: '#c9d1d9' } },
                        tooltip: {
                            callbacks: {
                                label: function(ctx) {
                                    var text = ctx.dataset.hoverText && ctx.dataset.hoverText[ctx.dataIndex];
                                    if (!text) {
                                        return ctx.dataset.label + ': ' + ctx.formattedValue;
                                    }
                                    var idx = text.indexOf(': ');
                                    if (idx >= 0) {
                                        text = text.slice(idx + 2);
                                    }
                                    return ctx.dataset.label + ': ' + text;
                                }
                            }
                        }
                    },
                    scales: {
                        x: {
                            stacked: chart.stacked,
                            grid: { color: 'rgba(128, 128, 128, 0.1)' },
                            ticks: { color: '#8b949e', maxTicksLimit: 18 }
                        },
                        y: yScale
                    }
                }
            });
        }

        function hexToRgba(hex, alpha) {
            var r = parseInt(hex.slice(1, 3), 16);
            var g = parseInt(hex.slice(3, 5), 16);
            var b = parseInt(hex.slice(5, 7), 16);
            return 'rgba(' + r + ', ' + g + ', ' + b + ', ' + alpha + ')';
        }

        function showToast(message) {
            var toast = document.createElement('div');
            toast.className = 'toast';
            toast.textContent = message;
            document.body.appendChild(toast);
            setTimeout(function() { toast.remove(); }, 4000);
        }

        document.getElementById('showBtn').addEventListener('click', loadCharts);
        document.getElementById('windowSlider').addEventListener('input', function() {
            document.getElementById('windowValue').textContent = this.value;
        });
        document.getElementById('familyBoxes').addEventListener('change', function() {
            if (selectedFamilies().length > 0) {
                document.getElementById('familyHint').classList.add('hidden');
            }
        });

        {{if .SavedViews}}
        async function loadViews() {
            try {
                var res = await fetch('/api/views');
                var body = await res.json();
                if (body.status !== 'success') return;
                var select = document.getElementById('viewSelect');
                select.innerHTML = '<option value="">Saved views...</option>';
                body.data.forEach(function(view) {
                    var opt = document.createElement('option');
                    opt.value = view.id;
                    opt.textContent = view.name;
                    opt.dataset.view = JSON.stringify(view);
                    select.appendChild(opt);
                });
            } catch (err) {
                console.error('Failed to load views:', err);
            }
        }

        async function saveView() {
            var name = prompt('View name:');
            if (!name) return;
            var view = {
                name: name,
                org_id: parseInt(orgParam(), 10) || 0,
                families: selectedFamilies(),
                variant: document.getElementById('variantSelect').value,
                smoothing: document.getElementById('smoothToggle').checked
                    ? document.getElementById('methodSelect').value
                    : 'none',
                window: parseInt(document.getElementById('windowSlider').value, 10)
            };
            try {
                var res = await fetch('/api/views', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify(view)
                });
                var body = await res.json();
                if (body.status !== 'success') {
                    showToast(body.error || 'Could not save view.');
                    return;
                }
                showToast('View saved.');
                loadViews();
            } catch (err) {
                console.error('Failed to save view:', err);
            }
        }

        async function deleteView() {
            var select = document.getElementById('viewSelect');
            if (!select.value) return;
            try {
                await fetch('/api/views?id=' + select.value, { method: 'DELETE' });
                showToast('View deleted.');
                loadViews();
            } catch (err) {
                console.error('Failed to delete view:', err);
            }
        }

        function applyView() {
            var select = document.getElementById('viewSelect');
            var opt = select.options[select.selectedIndex];
            if (!opt || !opt.dataset.view) return;
            var view = JSON.parse(opt.dataset.view);

            if (view.org_id > 0) {
                document.getElementById('orgInput').value = view.org_id;
            }
            document.getElementById('variantSelect').value = view.variant;
            var smooth = view.smoothing !== 'none';
            document.getElementById('smoothToggle').checked = smooth;
            if (smooth) {
                document.getElementById('methodSelect').value = view.smoothing;
            }
            document.getElementById('windowSlider').value = view.window;
            document.getElementById('windowValue').textContent = view.window;
            document.querySelectorAll('#familyBoxes input[name="family"]').forEach(function(box) {
                box.checked = view.families.indexOf(box.value) >= 0;
            });
            loadCharts();
        }

        document.getElementById('saveViewBtn').addEventListener('click', saveView);
        document.getElementById('deleteViewBtn').addEventListener('click', deleteView);
        document.getElementById('viewSelect').addEventListener('change', applyView);
        loadViews();
        {{end}}

        {{if .LiveUpdates}}
        function initWS() {
            var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            var ws = new WebSocket(proto + location.host + '/ws');
            ws.onopen = function() {
                document.getElementById('liveDot').classList.add('connected');
            };
            ws.onmessage = function(msg) {
                try {
                    var event = JSON.parse(msg.data);
                    if (event.event === 'dataset-updated') {
                        showToast('Dataset updated.');
                        loadCharts();
                    }
                } catch (err) {
                    console.error('WS parse error:', err);
                }
            };
            ws.onclose = function() {
                document.getElementById('liveDot').classList.remove('connected');
                setTimeout(initWS, 5000);
            };
        }
        initWS();
        {{end}}
    </script>
</body>
</html>`
