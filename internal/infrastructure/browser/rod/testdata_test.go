package rod

// registryPolyfill stands in for the browser's testing registry so pages can be
// exercised without the experimental Chrome feature.
const registryPolyfill = `<script>
(() => {
	const tools = [
		{ name: 'greet', description: 'Say hello', inputSchema: '{"type":"object","properties":{"name":{"type":"string"}}}' },
		{ name: 'searchFlights', description: 'Search flights' },
	];
	let changed = null;
	Object.defineProperty(navigator, 'modelContextTesting', {
		configurable: true,
		value: {
			listTools: async () => tools,
			registerToolsChangedCallback: (fn) => { changed = fn; },
			executeTool: async (name, args) => {
				const input = JSON.parse(args);
				switch (name) {
				case 'greet':
					return 'Hello, ' + input.name;
				case 'addTool':
					tools.push({ name: 'farewell', description: 'Say goodbye' });
					if (changed) changed();
					return 'added';
				case 'searchFlights':
					setTimeout(() => document.getElementById('search').submit(), 0);
					return null;
				default:
					throw new Error('unknown tool ' + name);
				}
			},
			getCrossDocumentScriptToolResult: async () => window.__pendingResult ?? null,
		},
	});
})();
</script>`

const toolsHTML = `<!DOCTYPE html>
<html>
<head><title>Tools</title>` + registryPolyfill + `</head>
<body>
	<form id="search" toolname="searchFlights" action="/results" method="get">
		<input name="to" value="LIS" />
	</form>
	<form id="framed" toolname="framedSearch" action="/results" target="resultsFrame"></form>
	<iframe name="resultsFrame" src="about:blank"></iframe>
</body>
</html>`

const resultsHTML = `<!DOCTYPE html>
<html>
<head><title>Results</title>` + registryPolyfill + `
<script>window.__pendingResult = 'found 3 flights';</script>
</head>
<body><h1>Results</h1></body>
</html>`

const plainHTML = `<!DOCTYPE html>
<html>
<head><title>Plain</title></head>
<body><h1>No tools here</h1></body>
</html>`
