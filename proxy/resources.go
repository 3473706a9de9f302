package proxy

import (
	"encoding/base64"

	"github.com/abpkit/contentfilter/rules"
)

// stub is a resource served in place of a redirected or blocked request.
type stub struct {
	contentType string
	body        []byte
}

// mustDecodeBase64 decodes s and panics on errors.
func mustDecodeBase64(s string) (b []byte) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}

	return b
}

// noopAnalyticsJS replaces the analytics scripts keeping the globals pages
// call.
const noopAnalyticsJS = `(function(){'use strict';const noop=function(){};` +
	`const ga=function(){const a=arguments[arguments.length-1];` +
	`if(a&&typeof a.hitCallback==='function'){try{a.hitCallback()}catch(e){}}};` +
	`ga.create=function(){return{get:noop,set:noop,send:noop}};` +
	`ga.getByName=function(){return null};ga.getAll=function(){return[]};` +
	`ga.remove=noop;ga.loaded=true;window.ga=ga;` +
	`const dl=window.dataLayer;if(dl instanceof Object&&typeof dl.hide==='object'&&typeof dl.hide.end==='function'){dl.hide.end()}` +
	`})();`

// noopGPTJS replaces the Google publisher tag.
const noopGPTJS = `(function(){'use strict';const noop=function(){};const noopThis=function(){return this};` +
	`const slot={addService:noopThis,clearCategoryExclusions:noopThis,clearTargeting:noopThis,` +
	`defineSizeMapping:noopThis,get:noop,getAdUnitPath:function(){return''},getAttributeKeys:function(){return[]},` +
	`getTargeting:function(){return[]},getTargetingKeys:function(){return[]},set:noopThis,` +
	`setCategoryExclusion:noopThis,setClickUrl:noopThis,setCollapseEmptyDiv:noopThis,setTargeting:noopThis};` +
	`const pubads={addEventListener:noopThis,clear:noop,clearCategoryExclusions:noopThis,clearTagForChildDirectedTreatment:noopThis,` +
	`clearTargeting:noopThis,collapseEmptyDivs:noop,defineOutOfPagePassback:function(){return slot},` +
	`definePassback:function(){return slot},disableInitialLoad:noop,display:noop,enableAsyncRendering:noop,` +
	`enableLazyLoad:noop,enableSingleRequest:noop,enableSyncRendering:noop,enableVideoAds:noop,get:noop,` +
	`getAttributeKeys:function(){return[]},getTargeting:noop,getTargetingKeys:function(){return[]},getSlots:function(){return[]},` +
	`refresh:noop,removeEventListener:noop,set:noopThis,setCategoryExclusion:noopThis,setCentering:noop,setCookieOptions:noopThis,` +
	`setForceSafeFrame:noopThis,setLocation:noopThis,setPrivacySettings:noopThis,setPublisherProvidedId:noopThis,` +
	`setRequestNonPersonalizedAds:noopThis,setSafeFrameConfig:noopThis,setTagForChildDirectedTreatment:noopThis,` +
	`setTargeting:noopThis,setVideoContent:noopThis,updateCorrelator:noop};` +
	`const gt=window.googletag||{};const cmd=gt.cmd||[];` +
	`gt.apiReady=true;gt.cmd=[];gt.cmd.push=function(a){try{a()}catch(e){}return 1};` +
	`gt.companionAds=function(){return{addEventListener:noopThis,enableSyncLoading:noop,setRefreshUnfilledSlots:noop}};` +
	`gt.content=function(){return{addEventListener:noopThis,setContent:noop}};` +
	`gt.defineOutOfPageSlot=function(){return slot};gt.defineSlot=function(){return slot};` +
	`gt.destroySlots=noop;gt.disablePublisherConsole=noop;gt.display=noop;gt.enableServices=noop;` +
	`gt.getVersion=function(){return''};gt.pubads=function(){return pubads};gt.pubadsReady=true;` +
	`gt.setAdIframeTitle=noop;gt.sizeMapping=function(){return{addSize:noopThis,build:noop}};` +
	`window.googletag=gt;while(cmd.length!==0){gt.cmd.push(cmd.shift())}` +
	`})();`

// noopAdsenseJS replaces the AdSense loader.
const noopAdsenseJS = `(function(){'use strict';window.adsbygoogle={loaded:true,push:function(){}};` +
	`const phs=document.querySelectorAll('.adsbygoogle');` +
	`const css='height:1px!important;max-height:1px!important;max-width:1px!important;width:1px!important;';` +
	`for(let i=0;i<phs.length;i++){const fr=document.createElement('iframe');fr.id='aswift_'+(i+1);` +
	`fr.style=css;const afr=document.createElement('iframe');afr.id='google_ads_frame'+i;fr.appendChild(afr);` +
	`phs[i].appendChild(fr)}` +
	`})();`

// stubs are the resources the proxy serves itself by name.
var stubs = map[string]*stub{
	rules.ResourceEmpty: {
		contentType: "text/plain",
		body:        []byte{},
	},
	rules.Resource1x1: {
		contentType: "image/gif",
		body:        mustDecodeBase64("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"),
	},
	rules.Resource2x2: {
		contentType: "image/png",
		body: mustDecodeBase64("iVBORw0KGgoAAAANSUhEUgAAAAIAAAACCAYAAABytg0kAAAAC0lEQVR42mNgQAcAABIAAeRVjec" +
			"AAAAASUVORK5CYII="),
	},
	rules.Resource3x2: {
		contentType: "image/png",
		body: mustDecodeBase64("iVBORw0KGgoAAAANSUhEUgAAAAMAAAACCAYAAACddGYaAAAAC0lEQVR42mNgwAUAABoAAS+Yl6Y" +
			"AAAAASUVORK5CYII="),
	},
	rules.Resource32x32: {
		contentType: "image/png",
		body: mustDecodeBase64("iVBORw0KGgoAAAANSUhEUgAAACAAAAAgCAYAAABzenr0AAAAGklEQVR42u3BAQEAAACCIP+vbkh" +
			"AAQAAAO8GECAAAcm1w7EAAAAASUVORK5CYII="),
	},
	// An empty body is a valid, zero-length media resource for players.
	rules.ResourceNoopMP3: {
		contentType: "audio/mpeg",
		body:        []byte{},
	},
	rules.ResourceNoopMP4: {
		contentType: "video/mp4",
		body:        []byte{},
	},
	rules.ResourceNoopHTML: {
		contentType: "text/html; charset=utf-8",
		body:        []byte("<!DOCTYPE html>\n"),
	},
	rules.ResourceNoopJS: {
		contentType: "application/javascript",
		body:        []byte("(function(){})();\n"),
	},
	rules.ResourceNoopTXT: {
		contentType: "text/plain",
		body:        []byte{},
	},
	rules.ResourceNoopVMAP: {
		contentType: "application/xml",
		body: []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
			`<vmap:VMAP xmlns:vmap="http://www.iab.net/videosuite/vmap" version="1.0"></vmap:VMAP>` + "\n"),
	},
	rules.ResourceNoEval: {
		contentType: "application/javascript",
		body: []byte(`(function(){'use strict';window.eval=new Proxy(window.eval,{apply:function(t,a,args){` +
			`console.log('eval() blocked:',args[0])}})})();` + "\n"),
	},
	rules.ResourceNoEvalS: {
		contentType: "application/javascript",
		body: []byte(`(function(){'use strict';window.eval=new Proxy(window.eval,{apply:function(){}})})();` +
			"\n"),
	},
	rules.ResourceAnalytics: {
		contentType: "application/javascript",
		body:        []byte(noopAnalyticsJS),
	},
	rules.ResourceGPT: {
		contentType: "application/javascript",
		body:        []byte(noopGPTJS),
	},
	rules.ResourceAdsense: {
		contentType: "application/javascript",
		body:        []byte(noopAdsenseJS),
	},
}
