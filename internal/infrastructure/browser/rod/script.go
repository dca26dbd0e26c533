package rod

// notifyBinding is the page-side function pushing registry changes and tool
// lifecycle events back to the controller.
const notifyBinding = "__webmcpNotify"

// requestJS forwards one bridge request to the script installed in the document.
const requestJS = `(req) => {
	const bridge = window.__webmcpBridge;
	if (!bridge) {
		return { error: { message: 'Error: page bridge is not installed' } };
	}
	return bridge.request(req);
}`

// bridgeScript runs before any page script in every new document of the tab.
const bridgeScript = `(() => {
	if (window.__webmcpBridge) return;

	const unavailable = {
		code: 'capability_unavailable',
		message: 'Error: You must run Chrome with the "Enables WebMCP for Testing" flag enabled.',
	};

	const notify = (msg) => {
		const fn = window.` + notifyBinding + `;
		if (typeof fn === 'function') {
			try { fn(msg); } catch (e) {}
		}
	};

	const describe = (tools) => (tools || []).map((t) => ({
		name: t.name,
		description: t.description || '',
		inputSchema: typeof t.inputSchema === 'string'
			? t.inputSchema
			: (t.inputSchema == null ? '' : JSON.stringify(t.inputSchema)),
	}));

	const registry = () => navigator.modelContextTesting;

	let watching = false;
	const pushTools = async () => {
		const mc = registry();
		if (!mc) return;
		try {
			const tools = await mc.listTools();
			notify({ type: 'TOOLS_CHANGED', tools: describe(tools), url: location.href });
		} catch (e) {
			notify({ type: 'TOOLS_CHANGED', message: String(e) });
		}
	};
	const watch = (mc) => {
		if (watching || typeof mc.registerToolsChangedCallback !== 'function') return;
		watching = true;
		mc.registerToolsChangedCallback(pushTools);
	};

	const request = async (req) => {
		const mc = registry();
		if (!mc) return { error: unavailable };
		try {
			switch (req.action) {
			case 'LIST_TOOLS': {
				watch(mc);
				const tools = await mc.listTools();
				return { tools: describe(tools), url: location.href };
			}
			case 'EXECUTE_TOOL': {
				const result = await mc.executeTool(req.name, req.inputArgs || '{}');
				return { value: result === undefined ? null : result };
			}
			case 'GET_PENDING_RESULT': {
				let win = window;
				if (req.target) {
					const frame = document.querySelector('[name="' + CSS.escape(req.target) + '"]');
					if (!frame || !frame.contentWindow) {
						return { error: { message: 'Error: no frame named ' + req.target } };
					}
					win = frame.contentWindow;
				}
				const ctx = win.navigator.modelContextTesting;
				if (!ctx) return { error: unavailable };
				const result = await ctx.getCrossDocumentScriptToolResult();
				return { value: result === undefined ? null : result };
			}
			default:
				return { error: { message: 'Error: unknown action ' + req.action } };
			}
		} catch (e) {
			return { error: { message: String(e) } };
		}
	};

	window.addEventListener('toolactivated', (e) => notify({ type: 'toolactivated', toolName: e.toolName }));
	window.addEventListener('toolcancel', (e) => notify({ type: 'toolcancel', toolName: e.toolName }));
	window.addEventListener('load', () => {
		const mc = registry();
		if (!mc) return;
		watch(mc);
		pushTools();
	});

	window.__webmcpBridge = { request };
})()`
