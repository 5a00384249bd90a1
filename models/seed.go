package models

// DefaultSymbols is the watch list seeded on first start
var DefaultSymbols = []Symbol{
	{Symbol: "THYAO.IS", Name: "Turkish Airlines", Market: MarketBIST, Sector: "Aviation", Currency: "TRY"},
	{Symbol: "AKBNK.IS", Name: "Akbank", Market: MarketBIST, Sector: "Banking", Currency: "TRY"},
	{Symbol: "GARAN.IS", Name: "Garanti BBVA", Market: MarketBIST, Sector: "Banking", Currency: "TRY"},
	{Symbol: "SISE.IS", Name: "Şişe Cam", Market: MarketBIST, Sector: "Industry", Currency: "TRY"},
	{Symbol: "KOZAA.IS", Name: "Koza Altın", Market: MarketBIST, Sector: "Mining", Currency: "TRY"},
	{Symbol: "EREGL.IS", Name: "Ereğli Iron Steel", Market: MarketBIST, Sector: "Metal", Currency: "TRY"},
	{Symbol: "ASELS.IS", Name: "Aselsan", Market: MarketBIST, Sector: "Defense", Currency: "TRY"},
	{Symbol: "KCHOL.IS", Name: "Koç Holding", Market: MarketBIST, Sector: "Conglomerate", Currency: "TRY"},
	{Symbol: "AAPL", Name: "Apple Inc.", Market: MarketUS, Sector: "Technology", Currency: "USD"},
	{Symbol: "MSFT", Name: "Microsoft", Market: MarketUS, Sector: "Technology", Currency: "USD"},
	{Symbol: "GOOGL", Name: "Alphabet (Google)", Market: MarketUS, Sector: "Technology", Currency: "USD"},
	{Symbol: "AMZN", Name: "Amazon", Market: MarketUS, Sector: "Retail", Currency: "USD"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Market: MarketUS, Sector: "Automotive", Currency: "USD"},
	{Symbol: "JPM", Name: "JPMorgan Chase", Market: MarketUS, Sector: "Banking", Currency: "USD"},
	{Symbol: "NVDA", Name: "NVIDIA", Market: MarketUS, Sector: "Technology", Currency: "USD"},
	{Symbol: "META", Name: "Meta Platforms", Market: MarketUS, Sector: "Technology", Currency: "USD"},
	{Symbol: "BTC-USD", Name: "Bitcoin", Market: MarketCrypto, Sector: "Cryptocurrency", Currency: "USD"},
	{Symbol: "ETH-USD", Name: "Ethereum", Market: MarketCrypto, Sector: "Cryptocurrency", Currency: "USD"},
}
