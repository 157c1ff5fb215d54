package renderer

// stealthScript runs before any page script. It masks the automation flag,
// spoofs hardware and GPU identity strings, mocks the extension runtime, and
// strips WebRTC ICE candidates that would leak the real network address.
const stealthScript = `
(() => {
    Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
    Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 4 });

    const originalToDataURL = HTMLCanvasElement.prototype.toDataURL;
    HTMLCanvasElement.prototype.toDataURL = function(...args) {
        return originalToDataURL.apply(this, args);
    };

    const getParameter = WebGLRenderingContext.prototype.getParameter;
    WebGLRenderingContext.prototype.getParameter = function(parameter) {
        if (parameter === 37445) return 'Intel Inc.';
        if (parameter === 37446) return 'Intel Iris OpenGL Engine';
        return getParameter.apply(this, [parameter]);
    };

    window.chrome = { runtime: {} };

    if (window.RTCPeerConnection) {
        const OrigRTC = window.RTCPeerConnection;
        window.RTCPeerConnection = function(...args) {
            const pc = new OrigRTC(...args);
            const origAddIceCandidate = pc.addIceCandidate.bind(pc);
            pc.addIceCandidate = function() { return Promise.resolve(); };
            void origAddIceCandidate;
            return pc;
        };
        window.RTCPeerConnection.prototype = OrigRTC.prototype;
    }
})();
`
