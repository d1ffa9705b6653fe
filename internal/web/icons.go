package web

// iconSymbols are the SVG symbols referenced by flow rows and bar segments
// through <use href="#id">. Every symbol uses a 100x100 viewbox.
const iconSymbols = `<svg xmlns="http://www.w3.org/2000/svg" style="display:none">
<symbol id="svg-sun" viewBox="0 0 100 100"><circle cx="50" cy="50" r="20"/><g stroke-width="8" stroke-linecap="round"><path d="M50 8v12M50 80v12M8 50h12M80 50h12M20 20l9 9M71 71l9 9M20 80l9-9M71 29l9-9"/></g></symbol>
<symbol id="svg-cloud" viewBox="0 0 100 100"><path d="M28 78a18 18 0 0 1-2-36 24 24 0 0 1 46-6 20 20 0 0 1 2 42z"/></symbol>
<symbol id="svg-house" viewBox="0 0 100 100"><path d="M50 10L6 48h12v40h24V64h16v24h24V48h12z"/></symbol>
<symbol id="svg-car-battery" viewBox="0 0 100 100"><path d="M20 24h14v-8h12v8h8v-8h12v8h14a6 6 0 0 1 6 6v50a6 6 0 0 1-6 6H20a6 6 0 0 1-6-6V30a6 6 0 0 1 6-6zm6 28v8h20v-8zm40-6h-8v6h-6v8h6v6h8v-6h6v-8h-6z"/></symbol>
<symbol id="svg-industry" viewBox="0 0 100 100"><path d="M8 90V40l22 14V40l22 14V40l22 14V10h18v80z"/></symbol>
<symbol id="svg-car" viewBox="0 0 100 100"><path d="M22 40l8-18a8 8 0 0 1 7-5h26a8 8 0 0 1 7 5l8 18a8 8 0 0 1 8 8v22h-8v8a4 4 0 0 1-4 4h-6a4 4 0 0 1-4-4v-8H36v8a4 4 0 0 1-4 4h-6a4 4 0 0 1-4-4v-8h-8V48a8 8 0 0 1 8-8zm10 0h36l-6-14H38zm-6 12a6 6 0 1 0 0 12 6 6 0 0 0 0-12zm48 0a6 6 0 1 0 0 12 6 6 0 0 0 0-12z"/></symbol>
<symbol id="svg-fire" viewBox="0 0 100 100"><path d="M52 6c4 22 28 30 28 56a30 30 0 0 1-60 0c0-14 8-22 14-28 0 10 4 16 10 18-4-16 2-32 8-46z"/></symbol>
<symbol id="svg-info" viewBox="0 0 100 100"><circle cx="50" cy="50" r="44" fill="none" stroke-width="8"/><path d="M44 44h12v32H44zM44 24h12v12H44z"/></symbol>
</svg>`
