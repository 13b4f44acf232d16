package constants

const USER_AGENT = "serverstats/1.0 (+https://github.com/Amund211/serverstats) contact@serverstats.example.com"
