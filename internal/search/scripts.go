package search

import "fmt"

// mouseMoveScript dispatches a stream of interpolated mousemove events.
// Purely behavioral; extraction never depends on it.
const mouseMoveScript = `
async function humanMouseMove(startX, startY, endX, endY, steps) {
    for (let i = 0; i <= steps; i++) {
        const t = i / steps;
        const x = startX + (endX - startX) * t;
        const y = startY + (endY - startY) * t;
        document.dispatchEvent(new MouseEvent('mousemove', {
            view: window, bubbles: true, cancelable: true, clientX: x, clientY: y
        }));
        await new Promise(r => setTimeout(r, 10 + Math.random() * 20));
    }
}
humanMouseMove(100, 100, 500, 400, 20);
`

// scrollScript walks the page in small increments with randomized pauses,
// then nudges back up.
const scrollScript = `
(async () => {
    const totalHeight = document.body.scrollHeight;
    let distance = 100;
    let scrolled = 0;
    while (scrolled < totalHeight) {
        window.scrollBy(0, distance);
        scrolled += distance;
        await new Promise(r => setTimeout(r, 100 + Math.random() * 300));
    }
    window.scrollBy(0, -200);
})();
`

// settleScript resolves once the DOM has been quiet for debounceMs, or
// unconditionally at ceilingMs.
func settleScript(debounceMs, ceilingMs int) string {
	return fmt.Sprintf(`
new Promise((resolve) => {
    let timeout;
    const observer = new MutationObserver(() => {
        clearTimeout(timeout);
        timeout = setTimeout(() => {
            observer.disconnect();
            resolve("mutations_complete");
        }, %d);
    });
    observer.observe(document.body, { childList: true, subtree: true });
    setTimeout(() => {
        observer.disconnect();
        resolve("timeout_reached");
    }, %d);
});
`, debounceMs, ceilingMs)
}

// consentScript accepts the Google consent interstitial when present.
const consentScript = `
(() => {
    if (document.body.textContent.includes('Before you continue') ||
        document.body.textContent.includes('Avant de continuer') ||
        document.body.textContent.includes('cookies')) {
        const acceptBtn = document.querySelector(
            'button[id*="accept"], button[id*="agree"], button[id*="L2AGLb"], form[action*="consent"] button');
        if (acceptBtn) {
            acceptBtn.click();
            return "consent_clicked";
        }
        return "consent_found_no_button";
    }
    return "no_consent";
})();
`

// verbatimScript undoes Google autocorrection by clicking the
// "Search instead for" link when offered.
const verbatimScript = `
(() => {
    const findLinkByText = (text) => {
        const links = document.querySelectorAll('a');
        for (const link of links) {
            if (link.textContent.includes(text)) return link;
        }
        return null;
    };

    const verbatimLink = document.querySelector('a.spell_orig') ||
                         document.querySelector('a[href*="nfpr=1"]') ||
                         document.querySelector('#fprsl') ||
                         findLinkByText("Search instead for");
    if (verbatimLink) {
        verbatimLink.click();
        return "clicked_verbatim";
    }

    const showingFor = document.querySelector('.spell') || document.querySelector('#scl');
    if (showingFor) {
        const originalLink = showingFor.querySelector('a');
        if (originalLink) {
            originalLink.click();
            return "clicked_original";
        }
    }
    return "no_autocorrect";
})();
`

// googleExtractScript is the primary structural extraction pass. It targets
// landmark attributes that survive styling churn, caps the block list, and
// falls back to scanning inline script payloads when the page rendered no
// recognizable result blocks.
const googleExtractScript = `
(() => {
    const results = [];
    const mainContent = document.querySelector('[role="main"]') || document.querySelector('#main');
    if (!mainContent) {
        return JSON.stringify({method: "dom", results: [], error: "no_main"});
    }

    const resultBlocks = mainContent.querySelectorAll(
        '[data-snf], .g, [jscontroller="SC7lYd"], [data-ved], .Gx5Zad');

    if (resultBlocks.length === 0 && !document.querySelector('[role="main"] h3')) {
        const scriptData = Array.from(document.scripts).find(s =>
            s.textContent?.includes('"results":') || s.textContent?.includes('AF_initDataCallback'));
        if (scriptData) {
            return JSON.stringify({
                method: "script_fallback",
                results: [],
                raw_snippet: scriptData.textContent.substring(0, 200)
            });
        }
    }

    resultBlocks.forEach((block) => {
        const titleEl = block.querySelector('h3, [role="heading"]');
        const linkEl = block.querySelector('a[href^="http"]:not([href*="google.com"])') ||
                       block.querySelector('a[jsname]');
        const snippetEl = block.querySelector('[data-content], [role="text"], .VwiC3b, .IsZvec, .yXK7lf');
        if (titleEl && linkEl && linkEl.href && !linkEl.href.includes('google.com/search')) {
            results.push({
                title: titleEl.textContent.trim(),
                link: linkEl.href,
                snippet: snippetEl ? snippetEl.textContent.trim() : ""
            });
        }
    });
    return JSON.stringify({method: "dom", results: results.slice(0, 10)});
})();
`

// jsContextScript reads the in-page search global mirroring the result data.
// Last resort, used when the structural evaluate call itself errors.
const jsContextScript = `
(() => {
    try {
        const googleData = window.google?.search?.cse?.results?.[0]?.results || [];
        return JSON.stringify({
            method: "js_context",
            results: googleData.slice(0, 10).map(r => ({
                title: r.title || "",
                link: r.url || "",
                snippet: r.content || ""
            }))
        });
    } catch (e) {
        return JSON.stringify({method: "js_context", results: []});
    }
})();
`
