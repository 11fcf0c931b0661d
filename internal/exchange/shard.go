package exchange

// regionShards collapses live affinity codes onto the shards of the
// partitioned API.
var regionShards = map[string]string{
	"na":    "na",
	"latam": "na",
	"br":    "na",
	"eu":    "eu",
	"ap":    "ap",
	"kr":    "kr",
}

// ShardForRegion maps a region code to its shard. Codes without a mapping
// are their own shard, so regions added by the provider keep working.
func ShardForRegion(region string) string {
	if shard, ok := regionShards[region]; ok {
		return shard
	}
	return region
}
